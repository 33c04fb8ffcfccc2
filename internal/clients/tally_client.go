package clients

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"tally-claim/internal/interfaces"
	"tally-claim/internal/types"
)

// claimFunds mirrors the claim tuple; field names must match the ABI
// component names.
type claimFunds struct {
	Index                      *big.Int
	VoiceCreditsPerOption      *big.Int
	TallyResultProof           [][]*big.Int
	TallyResultSalt            *big.Int
	VoteOptionTreeDepth        uint8
	SpentVoiceCreditsHash      *big.Int
	PerVOSpentVoiceCreditsHash *big.Int
}

// TallyClient is the go-ethereum binding of the tally contract.
type TallyClient struct {
	contract *boundContract
}

var _ interfaces.TallyContract = (*TallyClient)(nil)

// NewTallyClient binds the tally contract at address.
func NewTallyClient(address common.Address, caller ethereum.ContractCaller) *TallyClient {
	return &TallyClient{contract: newBoundContract(address, tallyABI, caller)}
}

// TallyContractFactory returns a factory binding tally contracts on caller.
func TallyContractFactory(caller ethereum.ContractCaller) interfaces.TallyContractFactory {
	return func(address common.Address) interfaces.TallyContract {
		return NewTallyClient(address, caller)
	}
}

// Address returns the tally contract address.
func (c *TallyClient) Address() common.Address {
	return c.contract.address
}

// TallyResult reads the stored tally value for index.
func (c *TallyClient) TallyResult(ctx context.Context, index *big.Int) (*big.Int, bool, error) {
	values, err := c.contract.call(ctx, "tallyResults", index)
	if err != nil {
		return nil, false, err
	}
	if len(values) != 2 {
		return nil, false, fmt.Errorf("tallyResults returned %d values, expected 2", len(values))
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, false, fmt.Errorf("tallyResults value is %T", values[0])
	}
	isSet, ok := values[1].(bool)
	if !ok {
		return nil, false, fmt.Errorf("tallyResults isSet is %T", values[1])
	}
	return value, isSet, nil
}

// VerifyTallyResult runs the on-chain inclusion check of a tally result.
func (c *TallyClient) VerifyTallyResult(ctx context.Context, q *types.TallyResultQuery) (bool, error) {
	return c.contract.callBool(ctx, "verifyTallyResult",
		q.Index, q.TallyResult, q.Proof, q.TallyResultSalt,
		q.VoteOptionTreeDepth, q.SpentVoiceCreditsHash, q.PerVOSpentVoiceCreditsHash)
}

// VerifyPerVOSpentVoiceCredits runs the on-chain inclusion check of the
// per-option spent voice credits.
func (c *TallyClient) VerifyPerVOSpentVoiceCredits(ctx context.Context, q *types.PerVOSpentQuery) (bool, error) {
	return c.contract.callBool(ctx, "verifyPerVOSpentVoiceCredits",
		q.Index, q.Spent, q.Proof, q.SpentSalt,
		q.VoteOptionTreeDepth, q.SpentVoiceCreditsHash, q.ResultCommitment)
}

func (c *TallyClient) IsPaused(ctx context.Context) (bool, error) {
	return c.contract.callBool(ctx, "paused")
}

func (c *TallyClient) IsClaimed(ctx context.Context, index *big.Int) (bool, error) {
	return c.contract.callBool(ctx, "claimed", index)
}

// AllocatedAmount is the payout the contract computes for index.
func (c *TallyClient) AllocatedAmount(ctx context.Context, index, voiceCreditsPerOption *big.Int) (*big.Int, error) {
	return c.contract.callBigInt(ctx, "getAllocatedAmount", index, voiceCreditsPerOption)
}

func (c *TallyClient) IsTallied(ctx context.Context) (bool, error) {
	return c.contract.callBool(ctx, "isTallied")
}

func (c *TallyClient) TallyBatchNum(ctx context.Context) (*big.Int, error) {
	return c.contract.callBigInt(ctx, "tallyBatchNum")
}

func (c *TallyClient) TotalTallyResults(ctx context.Context) (*big.Int, error) {
	return c.contract.callBigInt(ctx, "totalTallyResults")
}

func (c *TallyClient) RecipientCount(ctx context.Context) (*big.Int, error) {
	return c.contract.callBigInt(ctx, "recipientCount")
}

func (c *TallyClient) Token(ctx context.Context) (common.Address, error) {
	return c.contract.callAddress(ctx, "token")
}

func (c *TallyClient) TotalAmount(ctx context.Context) (*big.Int, error) {
	return c.contract.callBigInt(ctx, "totalAmount")
}

func (c *TallyClient) TotalSpent(ctx context.Context) (*big.Int, error) {
	return c.contract.callBigInt(ctx, "totalSpent")
}

func (c *TallyClient) VoiceCreditFactor(ctx context.Context) (*big.Int, error) {
	return c.contract.callBigInt(ctx, "voiceCreditFactor")
}

func (c *TallyClient) Alpha(ctx context.Context) (*big.Int, error) {
	return c.contract.callBigInt(ctx, "alpha")
}

func (c *TallyClient) TotalVotesSquares(ctx context.Context) (*big.Int, error) {
	return c.contract.callBigInt(ctx, "totalVotesSquares")
}

// ClaimCalldata packs the claim call. Simulation and the real transaction
// use the same bytes.
func (c *TallyClient) ClaimCalldata(p *types.ClaimParams) ([]byte, error) {
	data, err := tallyABI.Pack("claim", claimFunds{
		Index:                      p.Index,
		VoiceCreditsPerOption:      p.VoiceCreditsPerOption,
		TallyResultProof:           p.Proof,
		TallyResultSalt:            p.TallyResultSalt,
		VoteOptionTreeDepth:        p.VoteOptionTreeDepth,
		SpentVoiceCreditsHash:      p.SpentVoiceCreditsHash,
		PerVOSpentVoiceCreditsHash: p.PerVOSpentVoiceCreditsHash,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pack claim: %w", err)
	}
	return data, nil
}

// SimulateClaim executes the claim with eth_call from the signer address.
func (c *TallyClient) SimulateClaim(ctx context.Context, from common.Address, p *types.ClaimParams) error {
	data, err := c.ClaimCalldata(p)
	if err != nil {
		return err
	}
	to := c.contract.address
	if _, err := c.contract.caller.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Data: data}, nil); err != nil {
		return err
	}
	return nil
}

// DecodeRevert decodes the revert payload of a failed call, if any.
func (c *TallyClient) DecodeRevert(err error) (*types.DecodedRevert, []byte) {
	data := RevertData(err)
	if len(data) == 0 {
		return nil, nil
	}
	decoded, ok := DecodeRevertData(tallyABI, data)
	if !ok {
		return nil, data
	}
	return decoded, data
}
