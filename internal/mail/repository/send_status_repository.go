package repository

import (
	"time"

	"bizportal-backend/internal/mail/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type sendStatusRepository struct {
	db *gorm.DB
}

// NewSendStatusRepository creates a new gorm-backed SendStatusRepository
func NewSendStatusRepository(db *gorm.DB) SendStatusRepository {
	return &sendStatusRepository{db: db}
}

func (r *sendStatusRepository) Create(status *domain.SendStatus) error {
	if status.ID == "" {
		status.ID = uuid.New().String()
	}
	if status.MaxRetries == 0 {
		status.MaxRetries = domain.DefaultMaxRetries
	}
	now := time.Now()
	status.CreatedAt = now
	status.UpdatedAt = now
	return r.db.Create(status).Error
}

func (r *sendStatusRepository) Update(status *domain.SendStatus) error {
	status.UpdatedAt = time.Now()
	return r.db.Save(status).Error
}

func (r *sendStatusRepository) FindByID(id string) (*domain.SendStatus, error) {
	var status domain.SendStatus
	err := r.db.Where("id = ?", id).First(&status).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &status, nil
}

func (r *sendStatusRepository) FindRetryable(now time.Time, limit int) ([]*domain.SendStatus, error) {
	var statuses []*domain.SendStatus
	err := r.db.Where("status IN ? AND retry_count < max_retries AND next_retry_at <= ?",
		domain.FailureStates, now).
		Order("next_retry_at ASC").
		Limit(limit).Find(&statuses).Error
	return statuses, err
}

func (r *sendStatusRepository) FindDueScheduled(now time.Time, limit int) ([]*domain.SendStatus, error) {
	var statuses []*domain.SendStatus
	err := r.db.Where("status = ? AND scheduled_for <= ?", domain.SendStateScheduled, now).
		Order("scheduled_for ASC").
		Limit(limit).Find(&statuses).Error
	return statuses, err
}
