package repository

import (
	"time"

	"bizportal-backend/internal/mail/domain"
)

// AccountRepository defines data access for connected mailbox accounts
type AccountRepository interface {
	Create(account *domain.Account) error
	FindByID(id string) (*domain.Account, error)
	FindByEmail(email string) (*domain.Account, error)
	ListByUser(userID string) ([]*domain.Account, error)
	UpdateTokens(id, encryptedAccess, encryptedRefresh string) error
}

// SyncStateRepository defines data access for per-account sync state
type SyncStateRepository interface {
	// FindOrCreate returns the account's sync state, creating the idle
	// zero-watermark row on first access
	FindOrCreate(accountID string) (*domain.SyncState, error)
	Update(state *domain.SyncState) error
}

// ThreadRepository defines data access for local thread mirrors
type ThreadRepository interface {
	Create(thread *domain.Thread) error
	Update(thread *domain.Thread) error
	FindByID(id string) (*domain.Thread, error)
	// FindByRemoteID looks up the unique (account, remote thread) pair
	FindByRemoteID(accountID, remoteThreadID string) (*domain.Thread, error)
	ListByAccount(accountID string, label string, limit, offset int) ([]*domain.Thread, int64, error)
}

// MessageRepository defines data access for local message mirrors
type MessageRepository interface {
	Create(message *domain.Message) error
	Update(message *domain.Message) error
	FindByID(id string) (*domain.Message, error)
	FindByRemoteID(remoteMessageID string) (*domain.Message, error)
	FindByTrackingPixelID(pixelID string) (*domain.Message, error)
	ListByThread(threadID string) ([]*domain.Message, error)
}

// SendStatusRepository defines data access for send attempt lineages
type SendStatusRepository interface {
	Create(status *domain.SendStatus) error
	Update(status *domain.SendStatus) error
	FindByID(id string) (*domain.SendStatus, error)
	// FindRetryable selects failure rows still under their retry ceiling
	// whose next_retry_at has passed
	FindRetryable(now time.Time, limit int) ([]*domain.SendStatus, error)
	// FindDueScheduled selects scheduled rows whose scheduled_for has passed
	FindDueScheduled(now time.Time, limit int) ([]*domain.SendStatus, error)
}

// DraftRepository defines data access for persisted outbound drafts
type DraftRepository interface {
	Create(draft *domain.Draft) error
	FindByID(id string) (*domain.Draft, error)
	Delete(id string) error
}

// OpenEventRepository defines data access for tracking-pixel open events
type OpenEventRepository interface {
	Create(event *domain.OpenEvent) error
	ListByMessage(messageID string) ([]*domain.OpenEvent, error)
}
