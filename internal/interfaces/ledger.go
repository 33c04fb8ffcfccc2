package interfaces

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"tally-claim/internal/types"
)

// These interfaces break the dependency between services and the concrete
// go-ethereum bindings in clients, so services can be tested with fakes.

// PollRegistry reads poll deployments from the root registry.
type PollRegistry interface {
	Address() common.Address
	// Polls returns the contracts deployed for pollID. A zero Poll address
	// means the registry does not know the poll.
	Polls(ctx context.Context, pollID *big.Int) (*types.PollContracts, error)
	VoteOptionTreeDepth(ctx context.Context, poll common.Address) (uint8, error)
}

// TallyReader is the read-only surface of a tally contract.
type TallyReader interface {
	// TallyResult returns the stored value for index and whether it was set.
	TallyResult(ctx context.Context, index *big.Int) (*big.Int, bool, error)
	VerifyTallyResult(ctx context.Context, q *types.TallyResultQuery) (bool, error)
	VerifyPerVOSpentVoiceCredits(ctx context.Context, q *types.PerVOSpentQuery) (bool, error)
	IsPaused(ctx context.Context) (bool, error)
	IsClaimed(ctx context.Context, index *big.Int) (bool, error)
	AllocatedAmount(ctx context.Context, index, voiceCreditsPerOption *big.Int) (*big.Int, error)

	// Diagnostics
	IsTallied(ctx context.Context) (bool, error)
	TallyBatchNum(ctx context.Context) (*big.Int, error)
	TotalTallyResults(ctx context.Context) (*big.Int, error)
	RecipientCount(ctx context.Context) (*big.Int, error)
	Token(ctx context.Context) (common.Address, error)
	TotalAmount(ctx context.Context) (*big.Int, error)
	TotalSpent(ctx context.Context) (*big.Int, error)
	VoiceCreditFactor(ctx context.Context) (*big.Int, error)
	Alpha(ctx context.Context) (*big.Int, error)
	TotalVotesSquares(ctx context.Context) (*big.Int, error)
}

// ClaimSimulator prepares and dry-executes the claim call.
type ClaimSimulator interface {
	Address() common.Address
	ClaimCalldata(p *types.ClaimParams) ([]byte, error)
	// SimulateClaim executes the claim as a static call from the signer.
	SimulateClaim(ctx context.Context, from common.Address, p *types.ClaimParams) error
	// DecodeRevert extracts and decodes the revert payload carried by err.
	DecodeRevert(err error) (*types.DecodedRevert, []byte)
}

// TallyContract is the full tally binding used by the claim pipeline.
type TallyContract interface {
	TallyReader
	ClaimSimulator
}

// TallyContractFactory binds a tally contract at address.
type TallyContractFactory func(address common.Address) TallyContract

// TxSender signs, broadcasts and waits for a transaction.
type TxSender interface {
	From() common.Address
	SendAndWait(ctx context.Context, to common.Address, data []byte) (*types.TxReceipt, error)
}
