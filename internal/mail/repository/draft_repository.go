package repository

import (
	"time"

	"bizportal-backend/internal/mail/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type draftRepository struct {
	db *gorm.DB
}

// NewDraftRepository creates a new gorm-backed DraftRepository
func NewDraftRepository(db *gorm.DB) DraftRepository {
	return &draftRepository{db: db}
}

func (r *draftRepository) Create(draft *domain.Draft) error {
	if draft.ID == "" {
		draft.ID = uuid.New().String()
	}
	now := time.Now()
	draft.CreatedAt = now
	draft.UpdatedAt = now
	return r.db.Create(draft).Error
}

func (r *draftRepository) FindByID(id string) (*domain.Draft, error) {
	var draft domain.Draft
	err := r.db.Where("id = ?", id).First(&draft).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &draft, nil
}

func (r *draftRepository) Delete(id string) error {
	return r.db.Delete(&domain.Draft{}, "id = ?", id).Error
}
