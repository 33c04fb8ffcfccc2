package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tally-claim/internal/artifact"
	"tally-claim/internal/interfaces"
	"tally-claim/internal/merkle"
	"tally-claim/internal/metrics"
	"tally-claim/internal/types"
)

var zeroAddress common.Address

// ClaimServiceDeps wires the pipeline stages.
type ClaimServiceDeps struct {
	Resolver  *LedgerResolver
	Tally     interfaces.TallyContractFactory
	Checker   *CrossChecker
	Allocator *AllocationCalculator
	Submitter *ClaimSubmitter
	Recorder  *OutcomeRecorder // optional
	// TxURL builds an explorer link for a transaction hash. Optional.
	TxURL func(txHash string) string
	// LoadTally defaults to artifact.Load.
	LoadTally func(path string) (*artifact.TallyArtifact, error)
	Logger *logrus.Logger
}

// ClaimService runs one claim: load, resolve, prove, cross-check, compute
// the allocation, then submit or dry-run.
type ClaimService struct {
	resolver  *LedgerResolver
	tally     interfaces.TallyContractFactory
	checker   *CrossChecker
	allocator *AllocationCalculator
	submitter *ClaimSubmitter
	recorder  *OutcomeRecorder
	txURL     func(string) string
	loadTally func(string) (*artifact.TallyArtifact, error)
	logger    *logrus.Logger
}

// NewClaimService creates the pipeline.
func NewClaimService(deps ClaimServiceDeps) *ClaimService {
	load := deps.LoadTally
	if load == nil {
		load = artifact.Load
	}
	return &ClaimService{
		resolver:  deps.Resolver,
		tally:     deps.Tally,
		checker:   deps.Checker,
		allocator: deps.Allocator,
		submitter: deps.Submitter,
		recorder:  deps.Recorder,
		txURL:     deps.TxURL,
		loadTally: load,
		logger:    deps.Logger,
	}
}

// Run executes the pipeline. AlreadyClaimed and ZeroAllocation are
// successful outcomes with a nil error.
func (s *ClaimService) Run(ctx context.Context, req *types.ClaimRequest) (result *types.ClaimResult, err error) {
	result = &types.ClaimResult{
		RunID:          uuid.NewString(),
		Outcome:        types.OutcomeFailed,
		PollID:         req.PollID,
		RecipientIndex: req.RecipientIndex,
	}
	log := s.logger.WithFields(logrus.Fields{
		"run_id":  result.RunID,
		"poll_id": formatOptional(req.PollID),
		"index":   req.RecipientIndex,
		"dry_run": req.DryRun,
	})

	defer func() {
		if err != nil {
			result.Outcome = types.OutcomeFailed
		}
		metrics.ClaimRunsTotal.WithLabelValues(string(result.Outcome)).Inc()
		s.recorder.Record(ctx, req, result, err)
	}()

	log.Info("🚀 [ClaimService] Starting claim run")
	s.recorder.WarnPriorClaims(ctx, req)

	// Loaded
	start := time.Now()
	art, err := s.loadTally(req.TallyFile)
	metrics.ObserveStage("load", start)
	if err != nil {
		return result, err
	}
	if art.PollID != nil && req.PollID != nil && art.PollID.Cmp(req.PollID) != 0 {
		return result, fmt.Errorf("%w: tally file is for poll %s, requested poll %s",
			types.ErrArtifactMalformed, art.PollID, req.PollID)
	}
	log.WithFields(logrus.Fields{
		"options":      art.NumOptions(),
		"is_quadratic": art.IsQuadratic,
	}).Info("📄 [ClaimService] Tally file loaded")

	// Resolved
	start = time.Now()
	resolved, err := s.resolver.Resolve(ctx, req.PollID)
	metrics.ObserveStage("resolve", start)
	if err != nil {
		return result, err
	}
	result.TallyAddress = resolved.Contracts.Tally
	s.warnProvenance(log, art, resolved)

	// ProofBuilt
	start = time.Now()
	proof, err := merkle.BuildProof(req.RecipientIndex, art.Results.Tally, int(resolved.VoteOptionTreeDepth))
	metrics.ObserveStage("proof", start)
	if err != nil {
		if errors.Is(err, merkle.ErrIndexOutOfBounds) {
			return result, err
		}
		return result, fmt.Errorf("%w: %w", types.ErrArtifactMalformed, err)
	}

	// CrossChecked
	tally := s.tally(resolved.Contracts.Tally)
	start = time.Now()
	checked, err := s.checker.Check(ctx, &CrossCheckInput{
		Artifact: art,
		Index:    req.RecipientIndex,
		Depth:    resolved.VoteOptionTreeDepth,
		Proof:    proof,
		Tally:    tally,
	})
	metrics.ObserveStage("crosscheck", start)
	if err != nil {
		return result, err
	}
	result.Degraded = checked.Degraded
	result.PerVOProofValid = checked.PerVOProofValid
	result.Snapshot = checked.Snapshot
	if checked.AlreadyClaimed {
		result.Outcome = types.OutcomeAlreadyClaimed
		log.Info("✅ [ClaimService] Allocation already claimed, nothing to do")
		return result, nil
	}

	// AllocationComputed
	start = time.Now()
	allocation, err := s.allocator.Compute(ctx, &AllocationInput{
		Artifact: art,
		Index:    req.RecipientIndex,
		Tally:    tally,
		Snapshot: checked.Snapshot,
	})
	metrics.ObserveStage("allocation", start)
	if err != nil {
		return result, err
	}
	result.VoiceCreditsPerOption = allocation.VoiceCreditsPerOption
	result.Amount = allocation.Amount
	result.Solvency = allocation.Solvency
	s.logDiagnostics(log, checked, allocation)

	if allocation.Amount.Sign() == 0 {
		result.Outcome = types.OutcomeZeroAllocation
		log.Info("✅ [ClaimService] Allocated amount is zero, nothing to claim")
		return result, nil
	}

	params := &types.ClaimParams{
		Index:                      big.NewInt(int64(req.RecipientIndex)),
		VoiceCreditsPerOption:      allocation.VoiceCreditsPerOption,
		Proof:                      proof,
		TallyResultSalt:            art.Results.Salt,
		VoteOptionTreeDepth:        resolved.VoteOptionTreeDepth,
		SpentVoiceCreditsHash:      art.TotalSpentVoiceCredits.Commitment,
		PerVOSpentVoiceCreditsHash: art.PerVOSpentHash(),
	}
	result.Params = params

	// Submitted
	start = time.Now()
	receipt, err := s.submitter.Submit(ctx, &SubmitInput{
		Tally:  tally,
		Params: params,
		Amount: allocation.Amount,
		DryRun: req.DryRun,
	})
	metrics.ObserveStage("submit", start)
	if err != nil {
		return result, err
	}

	if req.DryRun {
		result.Outcome = types.OutcomeDryRun
		log.WithField("amount", allocation.Amount.String()).Info("🧪 [ClaimService] Dry run complete")
		return result, nil
	}

	result.Outcome = types.OutcomeClaimed
	result.Receipt = receipt
	fields := logrus.Fields{
		"tx_hash": receipt.TxHash.Hex(),
		"block":   receipt.BlockNumber,
		"amount":  allocation.Amount.String(),
	}
	if s.txURL != nil {
		if url := s.txURL(receipt.TxHash.Hex()); url != "" {
			fields["explorer"] = url
		}
	}
	log.WithFields(fields).Info("🎉 [ClaimService] Claim confirmed")
	return result, nil
}

// warnProvenance compares the optional provenance fields of the tally
// file with what the ledger resolved. The resolved values always win.
func (s *ClaimService) warnProvenance(log *logrus.Entry, art *artifact.TallyArtifact, resolved *types.ResolvedPoll) {
	if art.TallyAddress != zeroAddress && art.TallyAddress != resolved.Contracts.Tally {
		log.WithFields(logrus.Fields{
			"file_tally":     art.TallyAddress.Hex(),
			"resolved_tally": resolved.Contracts.Tally.Hex(),
		}).Warn("⚠️ [ClaimService] Tally address in file differs from the resolved tally contract, using the resolved one")
	}
	if art.MACI != zeroAddress && art.MACI != resolved.Registry {
		log.WithFields(logrus.Fields{
			"file_maci":     art.MACI.Hex(),
			"resolved_maci": resolved.Registry.Hex(),
		}).Warn("⚠️ [ClaimService] MACI address in file differs from the configured registry")
	}
}

// logDiagnostics emits the single diagnostic line of a run.
func (s *ClaimService) logDiagnostics(log *logrus.Entry, checked *types.CrossCheckResult, allocation *types.Allocation) {
	snap := checked.Snapshot
	fields := logrus.Fields{
		"voice_credits_per_option": allocation.VoiceCreditsPerOption.String(),
		"amount":                   allocation.Amount.String(),
		"stored_value":             formatOptional(snap.StoredValue),
		"value_derived":            snap.ValueDerived,
		"total_amount":             formatOptional(snap.TotalAmount),
		"total_spent":              formatOptional(snap.TotalSpent),
		"voice_credit_factor":      formatOptional(snap.VoiceCreditFactor),
		"batch_num":                formatOptional(snap.BatchNum),
		"total_results":            formatOptional(snap.TotalResults),
		"recipient_count":          formatOptional(snap.RecipientCount),
		"alpha":                    formatOptional(snap.Alpha),
		"total_votes_squares":      formatOptional(snap.TotalVotesSquares),
	}
	if snap.Token != nil {
		fields["token"] = snap.Token.Hex()
	}
	if snap.Tallied != nil {
		fields["tallied"] = *snap.Tallied
	}
	if allocation.Solvency.Known {
		fields["solvency_required"] = allocation.Solvency.Required.String()
		fields["solvency_missing"] = allocation.Solvency.Missing.String()
	}
	if checked.PerVOProofValid != nil {
		fields["per_vo_proof_valid"] = *checked.PerVOProofValid
	}
	if len(snap.Unavailable) > 0 {
		fields["unavailable"] = snap.Unavailable
	}

	entry := log.WithFields(fields)
	switch {
	case snap.Tallied != nil && !*snap.Tallied:
		entry.Warn("📊 [ClaimService] Tally diagnostics: contract reports the tally is not finalized")
	case allocation.Solvency.Known && allocation.Solvency.Missing.Sign() > 0:
		entry.Warn("📊 [ClaimService] Tally diagnostics: contract is underfunded for all claims")
	default:
		entry.Info("📊 [ClaimService] Tally diagnostics")
	}
}
