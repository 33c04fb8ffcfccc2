// Package types provides common type definitions used across the claim pipeline
package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ClaimRequest is one operator invocation.
type ClaimRequest struct {
	PollID         *big.Int
	TallyFile      string
	RecipientIndex int
	DryRun         bool
}

// PollContracts are the addresses the registry stores for one poll.
type PollContracts struct {
	Poll             common.Address
	MessageProcessor common.Address
	Tally            common.Address
}

// ResolvedPoll is the output of the ledger resolver.
type ResolvedPoll struct {
	PollID              *big.Int
	Registry            common.Address
	Contracts           PollContracts
	VoteOptionTreeDepth uint8
}

// TallyResultQuery is the argument list of verifyTallyResult.
type TallyResultQuery struct {
	Index                      *big.Int
	TallyResult                *big.Int
	Proof                      [][]*big.Int
	TallyResultSalt            *big.Int
	VoteOptionTreeDepth        uint8
	SpentVoiceCreditsHash      *big.Int
	PerVOSpentVoiceCreditsHash *big.Int
}

// PerVOSpentQuery is the argument list of verifyPerVOSpentVoiceCredits.
type PerVOSpentQuery struct {
	Index                 *big.Int
	Spent                 *big.Int
	Proof                 [][]*big.Int
	SpentSalt             *big.Int
	VoteOptionTreeDepth   uint8
	SpentVoiceCreditsHash *big.Int
	ResultCommitment      *big.Int
}

// ClaimParams are the arguments of the state-changing claim call. The same
// value is used for simulation and for the real transaction.
type ClaimParams struct {
	Index                      *big.Int
	VoiceCreditsPerOption      *big.Int
	Proof                      [][]*big.Int
	TallyResultSalt            *big.Int
	VoteOptionTreeDepth        uint8
	SpentVoiceCreditsHash      *big.Int
	PerVOSpentVoiceCreditsHash *big.Int
}

// OnchainSnapshot is what one run read from the ledger. Diagnostic fields
// stay nil when their read failed; Unavailable names them.
type OnchainSnapshot struct {
	Paused       bool
	Claimed      bool
	StoredValue  *big.Int
	ValueDerived bool // StoredValue came from the artifact, not the contract

	Tallied           *bool
	Token             *common.Address
	TotalAmount       *big.Int
	TotalSpent        *big.Int
	VoiceCreditFactor *big.Int
	BatchNum          *big.Int
	TotalResults      *big.Int
	RecipientCount    *big.Int
	Alpha             *big.Int
	TotalVotesSquares *big.Int

	Unavailable []string
}

// Solvency compares the budget needed for all claims with what the
// contract holds. Informational only.
type Solvency struct {
	Known    bool
	Required *big.Int
	Missing  *big.Int
}

// Allocation is the contract-computed payout for one index.
type Allocation struct {
	VoiceCreditsPerOption *big.Int
	Amount                *big.Int
	Solvency              Solvency
}

// CrossCheckResult is the outcome of validating the local proof against the ledger.
type CrossCheckResult struct {
	Proof           [][]*big.Int
	OnchainValue    *big.Int
	Degraded        bool
	AlreadyClaimed  bool
	PerVOProofValid *bool // nil when the tally is not quadratic
	Snapshot        *OnchainSnapshot
}

// TxReceipt is the confirmation of a mined claim transaction.
type TxReceipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	GasPrice    *big.Int
}

// ClaimOutcome is the terminal state of a successful run.
type ClaimOutcome string

const (
	OutcomeClaimed        ClaimOutcome = "claimed"
	OutcomeDryRun         ClaimOutcome = "dry_run"
	OutcomeAlreadyClaimed ClaimOutcome = "already_claimed"
	OutcomeZeroAllocation ClaimOutcome = "zero_allocation"
	OutcomeFailed         ClaimOutcome = "failed"
)

// ClaimResult summarises a run.
type ClaimResult struct {
	RunID                 string
	Outcome               ClaimOutcome
	PollID                *big.Int
	RecipientIndex        int
	TallyAddress          common.Address
	VoiceCreditsPerOption *big.Int
	Amount                *big.Int
	Params                *ClaimParams
	Receipt               *TxReceipt
	Degraded              bool
	PerVOProofValid       *bool
	Snapshot              *OnchainSnapshot
	Solvency              Solvency
}
