package types

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"tally-claim/internal/merkle"
)

// Claim pipeline failures. Context-rich variants unwrap to these.
var (
	ErrArtifactNotFound   = errors.New("tally artifact not found")
	ErrArtifactMalformed  = errors.New("tally artifact malformed")
	ErrPollNotFound       = errors.New("poll not found")
	ErrIndexOutOfBounds   = merkle.ErrIndexOutOfBounds
	ErrProofMismatch      = errors.New("tally result proof rejected by contract")
	ErrClaimPaused        = errors.New("claims are paused")
	ErrSimulationReverted = errors.New("claim simulation reverted")
	ErrSubmissionFailed   = errors.New("claim submission failed")
)

func formatBig(v *big.Int) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}

// ProofMismatchError carries everything needed to diff the artifact
// against the ledger without re-running.
type ProofMismatchError struct {
	Index                  int
	OnchainValue           *big.Int
	LocalValue             *big.Int
	Degraded               bool
	ResultsSalt            *big.Int
	ResultsCommitment      *big.Int
	LocalResultsCommitment *big.Int
	SpentVoiceCreditsHash  *big.Int
	PerVOSpentHash         *big.Int
	TreeDepth              uint8
}

func (e *ProofMismatchError) Error() string {
	return fmt.Sprintf(
		"%s: index=%d onchainValue=%s localValue=%s degraded=%t depth=%d salt=%s resultsCommitment=%s localResultsCommitment=%s spentVoiceCreditsHash=%s perVOSpentHash=%s",
		ErrProofMismatch, e.Index, formatBig(e.OnchainValue), formatBig(e.LocalValue), e.Degraded, e.TreeDepth,
		formatBig(e.ResultsSalt), formatBig(e.ResultsCommitment), formatBig(e.LocalResultsCommitment),
		formatBig(e.SpentVoiceCreditsHash), formatBig(e.PerVOSpentHash),
	)
}

func (e *ProofMismatchError) Unwrap() error {
	return ErrProofMismatch
}

// DecodedRevert is a revert payload matched against a known error ABI.
type DecodedRevert struct {
	Name string
	Args []interface{}
	Raw  []byte
}

func (d *DecodedRevert) String() string {
	if d == nil {
		return "<undecoded>"
	}
	args := make([]string, len(d.Args))
	for i, a := range d.Args {
		args[i] = fmt.Sprint(a)
	}
	return fmt.Sprintf("%s(%s)", d.Name, strings.Join(args, ", "))
}

// SimulationRevertedError wraps the failure of the static claim call.
type SimulationRevertedError struct {
	Index   int
	Revert  *DecodedRevert
	RawData []byte
	Err     error
}

func (e *SimulationRevertedError) Error() string {
	if e.Revert != nil {
		return fmt.Sprintf("%s: index=%d reason=%s: %v", ErrSimulationReverted, e.Index, e.Revert, e.Err)
	}
	if len(e.RawData) > 0 {
		return fmt.Sprintf("%s: index=%d data=0x%x: %v", ErrSimulationReverted, e.Index, e.RawData, e.Err)
	}
	return fmt.Sprintf("%s: index=%d: %v", ErrSimulationReverted, e.Index, e.Err)
}

func (e *SimulationRevertedError) Unwrap() []error {
	return []error{ErrSimulationReverted, e.Err}
}
