package domain

import (
	"time"

	"gorm.io/gorm"
)

// SyncStatus is the lifecycle state of an account's mailbox sync
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusError   SyncStatus = "error"
)

// SendState is the lifecycle state of one logical outbound message
type SendState string

const (
	SendStateScheduled SendState = "scheduled"
	SendStateSending   SendState = "sending"
	SendStateSent      SendState = "sent"
	SendStateFailed    SendState = "failed"
	SendStateHard      SendState = "hard"
	SendStateSoft      SendState = "soft"
	SendStateComplaint SendState = "complaint"
)

// FailureStates are the SendStatus states eligible for automatic retry
var FailureStates = []SendState{SendStateFailed, SendStateHard, SendStateSoft, SendStateComplaint}

// BounceType classifies a delivery failure
type BounceType string

const (
	BounceHard      BounceType = "hard"
	BounceSoft      BounceType = "soft"
	BounceComplaint BounceType = "complaint"
)

const (
	// DefaultMaxRetries is the automatic retry ceiling for a send
	DefaultMaxRetries = 3
	// LabelTrash marks a locally trashed message
	LabelTrash = "TRASH"
	// LabelUnread marks an unread message
	LabelUnread = "UNREAD"
	// LabelStarred marks a starred message
	LabelStarred = "STARRED"
)

// Account is one connected mailbox. Tokens are stored encrypted and are only
// decrypted inside the credential store.
type Account struct {
	ID                    string    `json:"id" gorm:"primaryKey"`
	UserID                string    `json:"user_id" gorm:"index;not null"`
	Email                 string    `json:"email" gorm:"uniqueIndex;not null"`
	Provider              string    `json:"provider" gorm:"default:google"`
	EncryptedAccessToken  string    `json:"-" gorm:"type:text"`
	EncryptedRefreshToken string    `json:"-" gorm:"type:text"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// SyncState holds the per-account sync watermark and status, 1:1 with Account.
// HistoryID only moves forward and only after a successful reconciliation.
type SyncState struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	AccountID    string     `json:"account_id" gorm:"uniqueIndex;not null"`
	Status       SyncStatus `json:"status" gorm:"default:idle"`
	HistoryID    uint64     `json:"history_id"` // 0 means no watermark yet
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	LastError    string     `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (SyncState) TableName() string {
	return "sync_states"
}

// Thread mirrors one remote conversation. Exactly one row per
// (account_id, remote_thread_id).
type Thread struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	AccountID      string     `json:"account_id" gorm:"index:idx_account_remote_thread,unique;not null"`
	RemoteThreadID string     `json:"remote_thread_id" gorm:"index:idx_account_remote_thread,unique;not null"`
	Subject        string     `json:"subject"`
	Snippet        string     `json:"snippet" gorm:"type:text"`
	Participants   []string   `json:"participants" gorm:"serializer:json"`
	Labels         []string   `json:"labels" gorm:"serializer:json"`
	IsStarred      bool       `json:"is_starred"`
	MessageCount   int        `json:"message_count"`
	UnreadCount    int        `json:"unread_count"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Message mirrors one remote message. Body and identifiers are immutable once
// set; only label/flag fields change afterwards.
type Message struct {
	ID              string            `json:"id" gorm:"primaryKey"`
	ThreadID        string            `json:"thread_id" gorm:"index;not null"`
	AccountID       string            `json:"account_id" gorm:"index;not null"`
	RemoteMessageID string            `json:"remote_message_id" gorm:"uniqueIndex;not null"`
	From            string            `json:"from"`
	FromName        string            `json:"from_name"`
	To              []string          `json:"to" gorm:"serializer:json"`
	Cc              []string          `json:"cc,omitempty" gorm:"serializer:json"`
	Bcc             []string          `json:"bcc,omitempty" gorm:"serializer:json"`
	Subject         string            `json:"subject"`
	Snippet         string            `json:"snippet" gorm:"type:text"`
	BodyHTML        string            `json:"body_html" gorm:"type:text"`
	BodyText        string            `json:"body_text" gorm:"type:text"`
	Labels          []string          `json:"labels" gorm:"serializer:json"`
	IsRead          bool              `json:"is_read"`
	IsStarred       bool              `json:"is_starred"`
	Headers         map[string]string `json:"headers,omitempty" gorm:"serializer:json"`
	TrackingPixelID string            `json:"tracking_pixel_id,omitempty" gorm:"index"`
	SentAt          *time.Time        `json:"sent_at,omitempty"`
	ReceivedAt      time.Time         `json:"received_at"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// IsTrashed reports whether the message carries the local trash marker
func (m *Message) IsTrashed() bool {
	for _, l := range m.Labels {
		if l == LabelTrash {
			return true
		}
	}
	return false
}

// SendStatus is the audit/state record for one logical outbound message.
// Once Status is sent the row is terminal; once RetryCount reaches MaxRetries
// a failure row is terminal for the automatic retry scanner.
type SendStatus struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	AccountID    string     `json:"account_id" gorm:"index;not null"`
	DraftID      string     `json:"draft_id,omitempty" gorm:"index"`
	MessageID    string     `json:"message_id,omitempty" gorm:"index"`
	Status       SendState  `json:"status" gorm:"index;default:sending"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries" gorm:"default:3"`
	ErrorMessage string     `json:"error_message,omitempty" gorm:"type:text"`
	BounceType   BounceType `json:"bounce_type,omitempty"`
	BounceReason string     `json:"bounce_reason,omitempty"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty" gorm:"index"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty" gorm:"index"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (SendStatus) TableName() string {
	return "send_statuses"
}

// DraftAttachment is one binary attachment persisted with a draft
type DraftAttachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

// Draft persists the full outbound parameter set so the retry scanner and the
// scheduled-send scanner can replay a send without the original request.
type Draft struct {
	ID              string            `json:"id" gorm:"primaryKey"`
	AccountID       string            `json:"account_id" gorm:"index;not null"`
	AccountEmail    string            `json:"account_email"`
	To              []string          `json:"to" gorm:"serializer:json"`
	Cc              []string          `json:"cc,omitempty" gorm:"serializer:json"`
	Bcc             []string          `json:"bcc,omitempty" gorm:"serializer:json"`
	Subject         string            `json:"subject"`
	BodyHTML        string            `json:"body_html" gorm:"type:text"`
	BodyText        string            `json:"body_text" gorm:"type:text"`
	InReplyTo       string            `json:"in_reply_to,omitempty"`
	References      string            `json:"references,omitempty"`
	RemoteThreadID  string            `json:"remote_thread_id,omitempty"`
	Attachments     []DraftAttachment `json:"attachments,omitempty" gorm:"serializer:json"`
	TrackingEnabled bool              `json:"tracking_enabled"`
	TrackingPixelID string            `json:"tracking_pixel_id,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	DeletedAt       gorm.DeletedAt    `json:"-" gorm:"index"`
}

// OpenEvent records one hit on a message's tracking pixel
type OpenEvent struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	MessageID       string    `json:"message_id" gorm:"index;not null"`
	TrackingPixelID string    `json:"tracking_pixel_id" gorm:"index;not null"`
	OpenedAt        time.Time `json:"opened_at"`
	IPAddress       string    `json:"ip_address,omitempty"`
	UserAgent       string    `json:"user_agent,omitempty"`
	Location        string    `json:"location,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
