package repository

import (
	"context"

	"gorm.io/gorm"

	"tally-claim/internal/models"
)

// ClaimRecordRepository defines the interface for claim audit records
type ClaimRecordRepository interface {
	Create(ctx context.Context, record *models.ClaimRecord) error
	GetByID(ctx context.Context, id string) (*models.ClaimRecord, error)
	// FindByRecipient lists runs for one recipient, newest first.
	FindByRecipient(ctx context.Context, network, pollID string, index int) ([]*models.ClaimRecord, error)
}

// claimRecordRepository implements ClaimRecordRepository
type claimRecordRepository struct {
	db *gorm.DB
}

// NewClaimRecordRepository creates a new ClaimRecordRepository instance
func NewClaimRecordRepository(db *gorm.DB) ClaimRecordRepository {
	return &claimRecordRepository{db: db}
}

// Create creates a new claim record
func (r *claimRecordRepository) Create(ctx context.Context, record *models.ClaimRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByID retrieves a claim record by run ID
func (r *claimRecordRepository) GetByID(ctx context.Context, id string) (*models.ClaimRecord, error) {
	var record models.ClaimRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *claimRecordRepository) FindByRecipient(ctx context.Context, network, pollID string, index int) ([]*models.ClaimRecord, error) {
	var records []*models.ClaimRecord
	err := r.db.WithContext(ctx).
		Where("network = ? AND poll_id = ? AND recipient_index = ?", network, pollID, index).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
