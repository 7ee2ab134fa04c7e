package repository

import (
	"time"

	"bizportal-backend/internal/mail/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository creates a new gorm-backed ThreadRepository
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) Create(thread *domain.Thread) error {
	if thread.ID == "" {
		thread.ID = uuid.New().String()
	}
	now := time.Now()
	thread.CreatedAt = now
	thread.UpdatedAt = now
	return r.db.Create(thread).Error
}

func (r *threadRepository) Update(thread *domain.Thread) error {
	thread.UpdatedAt = time.Now()
	return r.db.Save(thread).Error
}

func (r *threadRepository) FindByID(id string) (*domain.Thread, error) {
	var thread domain.Thread
	err := r.db.Where("id = ?", id).First(&thread).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &thread, nil
}

func (r *threadRepository) FindByRemoteID(accountID, remoteThreadID string) (*domain.Thread, error) {
	var thread domain.Thread
	err := r.db.Where("account_id = ? AND remote_thread_id = ?", accountID, remoteThreadID).First(&thread).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &thread, nil
}

func (r *threadRepository) ListByAccount(accountID string, label string, limit, offset int) ([]*domain.Thread, int64, error) {
	var threads []*domain.Thread
	var total int64

	query := r.db.Model(&domain.Thread{}).Where("account_id = ?", accountID)
	if label != "" {
		// labels column is serialized JSON; a LIKE match on the quoted label
		// is portable between postgres and the sqlite test driver
		query = query.Where("labels LIKE ?", "%\""+label+"\"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("last_message_at DESC").
		Limit(limit).Offset(offset).Find(&threads).Error
	return threads, total, err
}
