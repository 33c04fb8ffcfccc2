package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"tally-claim/internal/events"
	"tally-claim/internal/models"
	"tally-claim/internal/repository"
	"tally-claim/internal/types"
)

// OutcomePublisher publishes claim outcome events.
type OutcomePublisher interface {
	PublishClaimOutcome(event *events.ClaimOutcomeEvent) error
}

// OutcomeRecorder writes the audit record and publishes the outcome event.
// Both are optional and best-effort: failures are logged and never change
// the result of a run.
type OutcomeRecorder struct {
	network   string
	store     repository.ClaimRecordRepository
	publisher OutcomePublisher
	logger    *logrus.Logger
}

// NewOutcomeRecorder creates a recorder; store and publisher may be nil.
func NewOutcomeRecorder(network string, store repository.ClaimRecordRepository, publisher OutcomePublisher, logger *logrus.Logger) *OutcomeRecorder {
	return &OutcomeRecorder{network: network, store: store, publisher: publisher, logger: logger}
}

// WarnPriorClaims logs earlier confirmed claims of the same recipient.
func (r *OutcomeRecorder) WarnPriorClaims(ctx context.Context, req *types.ClaimRequest) {
	if r == nil || r.store == nil || req.PollID == nil {
		return
	}
	records, err := r.store.FindByRecipient(ctx, r.network, req.PollID.String(), req.RecipientIndex)
	if err != nil {
		r.logger.WithError(err).Warn("⚠️ [OutcomeRecorder] Failed to query prior claim records")
		return
	}
	for _, record := range records {
		if record.Outcome == string(types.OutcomeClaimed) {
			r.logger.WithFields(logrus.Fields{
				"prior_run_id": record.ID,
				"tx_hash":      record.TxHash,
				"claimed_at":   record.CreatedAt.Format(time.RFC3339),
			}).Warn("⚠️ [OutcomeRecorder] Audit log already has a confirmed claim for this recipient")
			return
		}
	}
}

// Record stores and publishes the outcome of a run.
func (r *OutcomeRecorder) Record(ctx context.Context, req *types.ClaimRequest, result *types.ClaimResult, runErr error) {
	if r == nil {
		return
	}
	log := r.logger.WithField("run_id", result.RunID)

	if r.store != nil {
		if err := r.store.Create(ctx, newClaimRecord(r.network, req, result, runErr)); err != nil {
			log.WithError(err).Warn("⚠️ [OutcomeRecorder] Failed to write claim audit record")
		}
	}

	if r.publisher != nil {
		if err := r.publisher.PublishClaimOutcome(events.NewClaimOutcomeEvent(r.network, result, runErr)); err != nil {
			log.WithError(err).Warn("⚠️ [OutcomeRecorder] Failed to publish claim outcome")
		}
	}
}

func newClaimRecord(network string, req *types.ClaimRequest, result *types.ClaimResult, runErr error) *models.ClaimRecord {
	record := &models.ClaimRecord{
		ID:              result.RunID,
		Network:         network,
		RecipientIndex:  result.RecipientIndex,
		Outcome:         string(result.Outcome),
		DryRun:          req.DryRun,
		Degraded:        result.Degraded,
		PerVOProofValid: result.PerVOProofValid,
		CreatedAt:       time.Now(),
	}
	if result.PollID != nil {
		record.PollID = result.PollID.String()
	}
	if result.TallyAddress != zeroAddress {
		record.TallyAddress = result.TallyAddress.Hex()
	}
	if result.VoiceCreditsPerOption != nil {
		record.VoiceCreditsPerOption = result.VoiceCreditsPerOption.String()
	}
	if result.Amount != nil {
		record.Amount = result.Amount.String()
	}
	if result.Receipt != nil {
		record.TxHash = result.Receipt.TxHash.Hex()
		record.BlockNumber = result.Receipt.BlockNumber
		record.GasUsed = result.Receipt.GasUsed
	}
	if runErr != nil {
		record.Error = runErr.Error()
	}
	return record
}
