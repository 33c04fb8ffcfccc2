package services

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tally-claim/internal/artifact"
	"tally-claim/internal/interfaces"
	"tally-claim/internal/metrics"
	"tally-claim/internal/types"
)

// AllocationInput selects the recipient whose payout is computed.
type AllocationInput struct {
	Artifact *artifact.TallyArtifact
	Index    int
	Tally    interfaces.TallyReader
	// Snapshot receives the diagnostic reads. May be nil.
	Snapshot *types.OnchainSnapshot
}

// AllocationCalculator reads the payout from the contract and gathers the
// funding diagnostics alongside it.
type AllocationCalculator struct {
	logger *logrus.Logger
}

// NewAllocationCalculator creates a calculator.
func NewAllocationCalculator(logger *logrus.Logger) *AllocationCalculator {
	return &AllocationCalculator{logger: logger}
}

// Compute fans out the allocated amount read and the diagnostic reads and
// joins them. Only a failed amount read is an error; diagnostic failures
// leave their snapshot field nil and are listed in Unavailable.
func (a *AllocationCalculator) Compute(ctx context.Context, in *AllocationInput) (*types.Allocation, error) {
	index := big.NewInt(int64(in.Index))
	voiceCredits := in.Artifact.VoiceCreditsFor(in.Index)
	snapshot := in.Snapshot
	if snapshot == nil {
		snapshot = &types.OnchainSnapshot{}
	}

	var (
		mu          sync.Mutex
		amount      *big.Int
		unavailable []string
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		v, err := in.Tally.AllocatedAmount(gctx, index, voiceCredits)
		if err != nil {
			return fmt.Errorf("failed to read allocated amount for index %d: %w", in.Index, err)
		}
		amount = v
		return nil
	})

	// soft reads: failures are recorded, never returned
	soft := func(name string, read func(context.Context) error) {
		g.Go(func() error {
			if err := read(gctx); err != nil {
				a.logger.WithError(err).WithField("field", name).Debug("[AllocationCalculator] Diagnostic read failed")
				mu.Lock()
				unavailable = append(unavailable, name)
				mu.Unlock()
			}
			return nil
		})
	}
	softBig := func(name string, read func(context.Context) (*big.Int, error), dst **big.Int) {
		soft(name, func(ctx context.Context) error {
			v, err := read(ctx)
			if err != nil {
				return err
			}
			mu.Lock()
			*dst = v
			mu.Unlock()
			return nil
		})
	}

	soft("tallied", func(ctx context.Context) error {
		v, err := in.Tally.IsTallied(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		snapshot.Tallied = &v
		mu.Unlock()
		return nil
	})
	soft("token", func(ctx context.Context) error {
		v, err := in.Tally.Token(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		snapshot.Token = new(common.Address)
		*snapshot.Token = v
		mu.Unlock()
		return nil
	})
	softBig("totalAmount", in.Tally.TotalAmount, &snapshot.TotalAmount)
	softBig("totalSpent", in.Tally.TotalSpent, &snapshot.TotalSpent)
	softBig("voiceCreditFactor", in.Tally.VoiceCreditFactor, &snapshot.VoiceCreditFactor)
	softBig("tallyBatchNum", in.Tally.TallyBatchNum, &snapshot.BatchNum)
	softBig("totalTallyResults", in.Tally.TotalTallyResults, &snapshot.TotalResults)
	softBig("recipientCount", in.Tally.RecipientCount, &snapshot.RecipientCount)
	softBig("alpha", in.Tally.Alpha, &snapshot.Alpha)
	softBig("totalVotesSquares", in.Tally.TotalVotesSquares, &snapshot.TotalVotesSquares)

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(unavailable)
	snapshot.Unavailable = append(snapshot.Unavailable, unavailable...)

	solvency := ComputeSolvency(snapshot.VoiceCreditFactor, snapshot.TotalSpent, snapshot.TotalAmount)
	if solvency.Known {
		metrics.SetBigGauge(metrics.ClaimSolvencyMissing, solvency.Missing)
	}
	metrics.SetBigGauge(metrics.ClaimAmount, amount)

	return &types.Allocation{
		VoiceCreditsPerOption: voiceCredits,
		Amount:                amount,
		Solvency:              solvency,
	}, nil
}

// ComputeSolvency returns missing = max(0, voiceCreditFactor*totalSpent - totalAmount).
// It is unknown when any input is missing.
func ComputeSolvency(voiceCreditFactor, totalSpent, totalAmount *big.Int) types.Solvency {
	if voiceCreditFactor == nil || totalSpent == nil || totalAmount == nil {
		return types.Solvency{}
	}
	required := new(big.Int).Mul(voiceCreditFactor, totalSpent)
	missing := new(big.Int).Sub(required, totalAmount)
	if missing.Sign() < 0 {
		missing.SetInt64(0)
	}
	return types.Solvency{Known: true, Required: required, Missing: missing}
}
