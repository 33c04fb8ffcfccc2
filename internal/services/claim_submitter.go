package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"

	"tally-claim/internal/interfaces"
	"tally-claim/internal/types"
)

// SubmitInput is one claim to submit or dry-run.
type SubmitInput struct {
	Tally  interfaces.ClaimSimulator
	Params *types.ClaimParams
	Amount *big.Int
	DryRun bool
}

// ClaimSubmitter simulates the claim and sends it only after a clean
// simulation.
type ClaimSubmitter struct {
	sender interfaces.TxSender
	logger *logrus.Logger
}

// NewClaimSubmitter creates a submitter. sender may be nil for dry runs.
func NewClaimSubmitter(sender interfaces.TxSender, logger *logrus.Logger) *ClaimSubmitter {
	return &ClaimSubmitter{sender: sender, logger: logger}
}

// Submit returns the receipt of the mined claim, or nil for a dry run.
func (s *ClaimSubmitter) Submit(ctx context.Context, in *SubmitInput) (*types.TxReceipt, error) {
	p := in.Params
	log := s.logger.WithFields(logrus.Fields{
		"tally":                    in.Tally.Address().Hex(),
		"index":                    p.Index.String(),
		"voice_credits_per_option": p.VoiceCreditsPerOption.String(),
		"amount":                   formatOptional(in.Amount),
	})

	if in.DryRun {
		calldata, err := in.Tally.ClaimCalldata(p)
		if err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{
			"tally_result_salt":               p.TallyResultSalt.String(),
			"vote_option_tree_depth":          p.VoteOptionTreeDepth,
			"spent_voice_credits_hash":        p.SpentVoiceCreditsHash.String(),
			"per_vo_spent_voice_credits_hash": p.PerVOSpentVoiceCreditsHash.String(),
			"proof_levels":                    len(p.Proof),
			"calldata":                        hexutil.Encode(calldata),
		}).Info("🧪 [ClaimSubmitter] Dry run, claim not sent")
		return nil, nil
	}

	if s.sender == nil {
		return nil, fmt.Errorf("%w: no signer configured", types.ErrSubmissionFailed)
	}

	if err := in.Tally.SimulateClaim(ctx, s.sender.From(), p); err != nil {
		decoded, raw := in.Tally.DecodeRevert(err)
		fields := logrus.Fields{"from": s.sender.From().Hex()}
		if decoded != nil {
			fields["revert"] = decoded.String()
		} else if len(raw) > 0 {
			fields["revert_data"] = hexutil.Encode(raw)
		}
		log.WithFields(fields).WithError(err).Error("❌ [ClaimSubmitter] Claim simulation reverted")
		return nil, &types.SimulationRevertedError{
			Index:   int(p.Index.Int64()),
			Revert:  decoded,
			RawData: raw,
			Err:     err,
		}
	}
	log.Info("✅ [ClaimSubmitter] Claim simulation succeeded")

	calldata, err := in.Tally.ClaimCalldata(p)
	if err != nil {
		return nil, err
	}

	receipt, err := s.sender.SendAndWait(ctx, in.Tally.Address(), calldata)
	if err != nil {
		if !errors.Is(err, types.ErrSubmissionFailed) {
			err = fmt.Errorf("%w: %w", types.ErrSubmissionFailed, err)
		}
		log.WithError(err).Error("❌ [ClaimSubmitter] Claim transaction failed")
		return nil, err
	}

	return receipt, nil
}
