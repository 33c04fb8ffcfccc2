package clients

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"tally-claim/internal/types"
)

// MACIClient reads poll deployments from the MACI registry.
type MACIClient struct {
	registry *boundContract
	caller   ethereum.ContractCaller
}

// NewMACIClient binds the registry at address.
func NewMACIClient(address common.Address, caller ethereum.ContractCaller) *MACIClient {
	return &MACIClient{
		registry: newBoundContract(address, maciABI, caller),
		caller:   caller,
	}
}

// Address returns the registry address.
func (c *MACIClient) Address() common.Address {
	return c.registry.address
}

// Polls returns the contracts deployed for pollID.
func (c *MACIClient) Polls(ctx context.Context, pollID *big.Int) (*types.PollContracts, error) {
	values, err := c.registry.call(ctx, "polls", pollID)
	if err != nil {
		return nil, err
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("polls returned %d values, expected 3", len(values))
	}

	contracts := &types.PollContracts{}
	targets := []*common.Address{&contracts.Poll, &contracts.MessageProcessor, &contracts.Tally}
	for i, target := range targets {
		addr, ok := values[i].(common.Address)
		if !ok {
			return nil, fmt.Errorf("polls value %d is %T, expected address", i, values[i])
		}
		*target = addr
	}
	return contracts, nil
}

// VoteOptionTreeDepth reads the vote option tree depth of a poll.
func (c *MACIClient) VoteOptionTreeDepth(ctx context.Context, poll common.Address) (uint8, error) {
	values, err := newBoundContract(poll, pollABI, c.caller).call(ctx, "treeDepths")
	if err != nil {
		return 0, err
	}
	if len(values) != 4 {
		return 0, fmt.Errorf("treeDepths returned %d values, expected 4", len(values))
	}
	depth, ok := values[3].(uint8)
	if !ok {
		return 0, fmt.Errorf("voteOptionTreeDepth is %T, expected uint8", values[3])
	}
	return depth, nil
}
