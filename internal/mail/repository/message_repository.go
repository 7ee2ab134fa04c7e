package repository

import (
	"time"

	"bizportal-backend/internal/mail/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new gorm-backed MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(message *domain.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	now := time.Now()
	message.CreatedAt = now
	message.UpdatedAt = now
	return r.db.Create(message).Error
}

func (r *messageRepository) Update(message *domain.Message) error {
	message.UpdatedAt = time.Now()
	return r.db.Save(message).Error
}

func (r *messageRepository) FindByID(id string) (*domain.Message, error) {
	var message domain.Message
	err := r.db.Where("id = ?", id).First(&message).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) FindByRemoteID(remoteMessageID string) (*domain.Message, error) {
	var message domain.Message
	err := r.db.Where("remote_message_id = ?", remoteMessageID).First(&message).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) FindByTrackingPixelID(pixelID string) (*domain.Message, error) {
	var message domain.Message
	err := r.db.Where("tracking_pixel_id = ?", pixelID).First(&message).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) ListByThread(threadID string) ([]*domain.Message, error) {
	var messages []*domain.Message
	err := r.db.Where("thread_id = ?", threadID).
		Order("received_at ASC").Find(&messages).Error
	return messages, err
}
