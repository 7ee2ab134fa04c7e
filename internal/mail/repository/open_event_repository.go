package repository

import (
	"time"

	"bizportal-backend/internal/mail/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type openEventRepository struct {
	db *gorm.DB
}

// NewOpenEventRepository creates a new gorm-backed OpenEventRepository
func NewOpenEventRepository(db *gorm.DB) OpenEventRepository {
	return &openEventRepository{db: db}
}

func (r *openEventRepository) Create(event *domain.OpenEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.CreatedAt = time.Now()
	return r.db.Create(event).Error
}

func (r *openEventRepository) ListByMessage(messageID string) ([]*domain.OpenEvent, error) {
	var events []*domain.OpenEvent
	err := r.db.Where("message_id = ?", messageID).
		Order("opened_at ASC").Find(&events).Error
	return events, err
}
