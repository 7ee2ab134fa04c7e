package dto

import (
	"time"

	maildomain "bizportal-backend/internal/mail/domain"
	"bizportal-backend/internal/mail/usecase"
)

type ConnectAccountRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Provider     string `json:"provider,omitempty"`
	AccessToken  string `json:"access_token" binding:"required"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type SendEmailRequest struct {
	usecase.SendParams
	SendAt *time.Time `json:"send_at,omitempty"`
}

type SendErrorResponse struct {
	Error      string                `json:"error"`
	StatusID   string                `json:"status_id,omitempty"`
	BounceType maildomain.BounceType `json:"bounce_type,omitempty"`
	Reason     string                `json:"reason,omitempty"`
}

type SyncRequest struct {
	ForceFullSync bool   `json:"force_full_sync,omitempty"`
	LabelFilter   string `json:"label_filter,omitempty"`
	MaxResults    int64  `json:"max_results,omitempty"`
}

type SyncStateResponse struct {
	AccountID    string                `json:"account_id"`
	Status       maildomain.SyncStatus `json:"status"`
	HistoryID    uint64                `json:"history_id"`
	LastSyncedAt *time.Time            `json:"last_synced_at,omitempty"`
	LastError    string                `json:"last_error,omitempty"`
}

type ThreadsResponse struct {
	Threads []*maildomain.Thread `json:"threads"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
	Total   int64                `json:"total"`
}

type MessagesResponse struct {
	Messages []*maildomain.Message `json:"messages"`
}

type OpenEventsResponse struct {
	Events []*maildomain.OpenEvent `json:"events"`
}
