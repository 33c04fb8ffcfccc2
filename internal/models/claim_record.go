package models

import (
	"time"
)

// ClaimRecord is the audit row written once per claim run.
type ClaimRecord struct {
	ID             string `json:"id" gorm:"primaryKey"` // run UUID
	Network        string `json:"network" gorm:"not null;index:idx_claim_poll_index"`
	PollID         string `json:"poll_id" gorm:"not null;index:idx_claim_poll_index"`
	RecipientIndex int    `json:"recipient_index" gorm:"not null;index:idx_claim_poll_index"`
	TallyAddress   string `json:"tally_address" gorm:"size:42"`
	Outcome        string `json:"outcome" gorm:"not null;index"` // types.ClaimOutcome
	DryRun         bool   `json:"dry_run"`

	VoiceCreditsPerOption string `json:"voice_credits_per_option"`
	Amount                string `json:"amount"` // token base units, decimal

	// transaction, set for confirmed claims
	TxHash      string `json:"tx_hash" gorm:"size:66;index"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`

	Degraded        bool   `json:"degraded"`          // tally value read fell back to the artifact
	PerVOProofValid *bool  `json:"per_vo_proof_valid"` // nil for non-quadratic tallies
	Error           string `json:"error" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName Specify table name
func (ClaimRecord) TableName() string {
	return "claim_records"
}
