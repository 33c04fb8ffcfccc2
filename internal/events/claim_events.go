// Package events defines the messages published after a claim run.
package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"tally-claim/internal/types"
)

// ClaimOutcomeEvent is published once per finished run.
type ClaimOutcomeEvent struct {
	RunID                 string    `json:"run_id"`
	Network               string    `json:"network"`
	PollID                string    `json:"poll_id"`
	RecipientIndex        int       `json:"recipient_index"`
	TallyAddress          string    `json:"tally_address"`
	Outcome               string    `json:"outcome"`
	VoiceCreditsPerOption string    `json:"voice_credits_per_option,omitempty"`
	Amount                string    `json:"amount,omitempty"`
	TxHash                string    `json:"tx_hash,omitempty"`
	BlockNumber           uint64    `json:"block_number,omitempty"`
	Degraded              bool      `json:"degraded"`
	Error                 string    `json:"error,omitempty"`
	Timestamp             time.Time `json:"timestamp"`
}

// NewClaimOutcomeEvent builds the event for a run. runErr is set for failed runs.
func NewClaimOutcomeEvent(network string, result *types.ClaimResult, runErr error) *ClaimOutcomeEvent {
	event := &ClaimOutcomeEvent{
		RunID:          result.RunID,
		Network:        network,
		RecipientIndex: result.RecipientIndex,
		Outcome:        string(result.Outcome),
		Degraded:       result.Degraded,
		Timestamp:      time.Now().UTC(),
	}
	if result.PollID != nil {
		event.PollID = result.PollID.String()
	}
	if result.TallyAddress != (common.Address{}) {
		event.TallyAddress = result.TallyAddress.Hex()
	}
	if result.VoiceCreditsPerOption != nil {
		event.VoiceCreditsPerOption = result.VoiceCreditsPerOption.String()
	}
	if result.Amount != nil {
		event.Amount = result.Amount.String()
	}
	if result.Receipt != nil {
		event.TxHash = result.Receipt.TxHash.Hex()
		event.BlockNumber = result.Receipt.BlockNumber
	}
	if runErr != nil {
		event.Error = runErr.Error()
	}
	return event
}

// Subject is <prefix>.<network>.<pollId>.<outcome>.
func (e *ClaimOutcomeEvent) Subject(prefix string) string {
	network := e.Network
	if network == "" {
		network = "unknown"
	}
	pollID := e.PollID
	if pollID == "" {
		pollID = "unknown"
	}
	return fmt.Sprintf("%s.%s.%s.%s", strings.TrimSuffix(prefix, "."), network, pollID, e.Outcome)
}
