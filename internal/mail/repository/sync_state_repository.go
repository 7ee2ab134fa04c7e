package repository

import (
	"time"

	"bizportal-backend/internal/mail/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type syncStateRepository struct {
	db *gorm.DB
}

// NewSyncStateRepository creates a new gorm-backed SyncStateRepository
func NewSyncStateRepository(db *gorm.DB) SyncStateRepository {
	return &syncStateRepository{db: db}
}

func (r *syncStateRepository) FindOrCreate(accountID string) (*domain.SyncState, error) {
	var state domain.SyncState
	err := r.db.Where("account_id = ?", accountID).First(&state).Error
	if err == nil {
		return &state, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	now := time.Now()
	state = domain.SyncState{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Status:    domain.SyncStatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.Create(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *syncStateRepository) Update(state *domain.SyncState) error {
	state.UpdatedAt = time.Now()
	return r.db.Save(state).Error
}
