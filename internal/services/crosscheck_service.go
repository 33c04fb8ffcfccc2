package services

import (
	"context"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"tally-claim/internal/artifact"
	"tally-claim/internal/interfaces"
	"tally-claim/internal/merkle"
	"tally-claim/internal/metrics"
	"tally-claim/internal/types"
)

// CrossCheckInput is what the cross-checker validates against the ledger.
type CrossCheckInput struct {
	Artifact *artifact.TallyArtifact
	Index    int
	Depth    uint8
	Proof    merkle.Proof
	Tally    interfaces.TallyReader
}

// CrossChecker validates the locally built proof against the values the
// tally contract has committed.
type CrossChecker struct {
	logger *logrus.Logger
}

// NewCrossChecker creates a cross-checker.
func NewCrossChecker(logger *logrus.Logger) *CrossChecker {
	return &CrossChecker{logger: logger}
}

// Check runs the on-chain verification, then the paused and claimed
// guards, then the auxiliary per-option spent proof for quadratic tallies.
func (c *CrossChecker) Check(ctx context.Context, in *CrossCheckInput) (*types.CrossCheckResult, error) {
	art := in.Artifact
	index := big.NewInt(int64(in.Index))
	localValue := art.Results.Tally[in.Index]
	log := c.logger.WithFields(logrus.Fields{
		"index": in.Index,
		"depth": in.Depth,
	})

	snapshot := &types.OnchainSnapshot{}
	result := &types.CrossCheckResult{Proof: in.Proof, Snapshot: snapshot}

	// 1. stored value, falling back to the artifact leaf
	value, isSet, err := in.Tally.TallyResult(ctx, index)
	switch {
	case err != nil:
		log.WithError(err).Warn("⚠️ [CrossChecker] tallyResults read failed, verifying with the artifact value")
		value = localValue
		result.Degraded = true
	case !isSet:
		log.Warn("⚠️ [CrossChecker] tallyResults not set on chain, verifying with the artifact value")
		value = localValue
		result.Degraded = true
	}
	result.OnchainValue = value
	snapshot.StoredValue = value
	snapshot.ValueDerived = result.Degraded

	if !result.Degraded && value.Cmp(localValue) != 0 {
		log.WithFields(logrus.Fields{
			"onchain_value": value.String(),
			"local_value":   localValue.String(),
		}).Warn("⚠️ [CrossChecker] On-chain tally value differs from the artifact")
	}

	// 2-3. primary verification
	perVOSpentHash := art.PerVOSpentHash()
	query := &types.TallyResultQuery{
		Index:                      index,
		TallyResult:                value,
		Proof:                      in.Proof,
		TallyResultSalt:            art.Results.Salt,
		VoteOptionTreeDepth:        in.Depth,
		SpentVoiceCreditsHash:      art.TotalSpentVoiceCredits.Commitment,
		PerVOSpentVoiceCreditsHash: perVOSpentHash,
	}
	valid, err := in.Tally.VerifyTallyResult(ctx, query)
	if err != nil {
		log.WithError(err).Warn("⚠️ [CrossChecker] verifyTallyResult call failed, treating as invalid")
		valid = false
	}
	metrics.SetProofVerification("tally_result", valid)

	// 4. mismatch
	if !valid {
		mismatch := &types.ProofMismatchError{
			Index:                  in.Index,
			OnchainValue:           value,
			LocalValue:             localValue,
			Degraded:               result.Degraded,
			ResultsSalt:            art.Results.Salt,
			ResultsCommitment:      art.Results.Commitment,
			LocalResultsCommitment: localResultsCommitment(art, in.Depth),
			SpentVoiceCreditsHash:  art.TotalSpentVoiceCredits.Commitment,
			PerVOSpentHash:         perVOSpentHash,
			TreeDepth:              in.Depth,
		}
		log.WithFields(logrus.Fields{
			"onchain_value":            formatOptional(mismatch.OnchainValue),
			"local_value":              formatOptional(mismatch.LocalValue),
			"degraded":                 mismatch.Degraded,
			"results_commitment":       formatOptional(mismatch.ResultsCommitment),
			"local_results_commitment": formatOptional(mismatch.LocalResultsCommitment),
			"spent_voice_credits_hash": formatOptional(mismatch.SpentVoiceCreditsHash),
			"per_vo_spent_hash":        formatOptional(mismatch.PerVOSpentHash),
		}).Error("❌ [CrossChecker] Tally result proof rejected by contract")
		return nil, mismatch
	}

	// 5. paused
	paused, err := in.Tally.IsPaused(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read paused state: %w", err)
	}
	snapshot.Paused = paused
	if paused {
		log.Error("⏸️ [CrossChecker] Claims are paused")
		return nil, types.ErrClaimPaused
	}

	// 6. claimed
	claimed, err := in.Tally.IsClaimed(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("failed to read claimed state: %w", err)
	}
	snapshot.Claimed = claimed
	if claimed {
		log.Info("ℹ️ [CrossChecker] Allocation already claimed")
		result.AlreadyClaimed = true
		return result, nil
	}

	// 7. auxiliary per-option spent proof
	if art.IsQuadratic {
		ok := c.checkPerVOSpent(ctx, in, index)
		result.PerVOProofValid = &ok
	}

	return result, nil
}

// checkPerVOSpent never aborts the run: the claim itself is gated by the
// primary proof only.
func (c *CrossChecker) checkPerVOSpent(ctx context.Context, in *CrossCheckInput, index *big.Int) bool {
	art := in.Artifact
	perVO := art.PerVOSpentVoiceCredits
	log := c.logger.WithField("index", in.Index)

	proof, err := merkle.BuildProof(in.Index, perVO.Tally, int(in.Depth))
	if err != nil {
		log.WithError(err).Warn("⚠️ [CrossChecker] Could not build per-option spent proof")
		metrics.SetProofVerification("per_vo_spent", false)
		return false
	}

	valid, err := in.Tally.VerifyPerVOSpentVoiceCredits(ctx, &types.PerVOSpentQuery{
		Index:                 index,
		Spent:                 perVO.Tally[in.Index],
		Proof:                 proof,
		SpentSalt:             perVO.Salt,
		VoteOptionTreeDepth:   in.Depth,
		SpentVoiceCreditsHash: art.TotalSpentVoiceCredits.Commitment,
		ResultCommitment:      art.Results.Commitment,
	})
	if err != nil {
		log.WithError(err).Warn("⚠️ [CrossChecker] verifyPerVOSpentVoiceCredits call failed, treating as invalid")
		valid = false
	}
	metrics.SetProofVerification("per_vo_spent", valid)

	if !valid {
		log.WithField("spent", perVO.Tally[in.Index].String()).
			Warn("⚠️ [CrossChecker] Per-option spent proof rejected; continuing because only the tally result proof gates the claim")
	}
	return valid
}

// localResultsCommitment recomputes H(root, salt) from the artifact, nil
// when the tree cannot be built.
func localResultsCommitment(art *artifact.TallyArtifact, depth uint8) *big.Int {
	root, err := merkle.Root(art.Results.Tally, int(depth))
	if err != nil {
		return nil
	}
	commitment, err := merkle.HashLeftRight(root, art.Results.Salt)
	if err != nil {
		return nil
	}
	return commitment
}

func formatOptional(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
