package services

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"tally-claim/internal/interfaces"
	"tally-claim/internal/merkle"
	"tally-claim/internal/types"
)

// LedgerResolver maps a poll id to its deployed contracts.
type LedgerResolver struct {
	registry interfaces.PollRegistry
	logger   *logrus.Logger
}

// NewLedgerResolver creates a resolver over the poll registry.
func NewLedgerResolver(registry interfaces.PollRegistry, logger *logrus.Logger) *LedgerResolver {
	return &LedgerResolver{registry: registry, logger: logger}
}

// Resolve reads the poll, message processor and tally addresses and the
// vote option tree depth, which is authoritative for proof construction.
func (r *LedgerResolver) Resolve(ctx context.Context, pollID *big.Int) (*types.ResolvedPoll, error) {
	if pollID == nil || pollID.Sign() < 0 {
		return nil, fmt.Errorf("%w: invalid poll id %v", types.ErrPollNotFound, pollID)
	}

	contracts, err := r.registry.Polls(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to read poll %s from registry %s: %w", pollID, r.registry.Address().Hex(), err)
	}
	if contracts.Poll == (common.Address{}) {
		return nil, fmt.Errorf("%w: poll %s is not deployed on registry %s", types.ErrPollNotFound, pollID, r.registry.Address().Hex())
	}
	if contracts.Tally == (common.Address{}) {
		return nil, fmt.Errorf("%w: poll %s has no tally contract", types.ErrPollNotFound, pollID)
	}

	depth, err := r.registry.VoteOptionTreeDepth(ctx, contracts.Poll)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree depths of poll %s: %w", contracts.Poll.Hex(), err)
	}
	if depth < 1 || int(depth) > merkle.MaxDepth {
		return nil, fmt.Errorf("poll %s reports vote option tree depth %d outside [1, %d]", contracts.Poll.Hex(), depth, merkle.MaxDepth)
	}

	r.logger.WithFields(logrus.Fields{
		"poll_id":                pollID.String(),
		"poll":                   contracts.Poll.Hex(),
		"message_processor":      contracts.MessageProcessor.Hex(),
		"tally":                  contracts.Tally.Hex(),
		"vote_option_tree_depth": depth,
	}).Info("🔍 [LedgerResolver] Poll resolved")

	return &types.ResolvedPoll{
		PollID:              pollID,
		Registry:            r.registry.Address(),
		Contracts:           *contracts,
		VoteOptionTreeDepth: depth,
	}, nil
}
