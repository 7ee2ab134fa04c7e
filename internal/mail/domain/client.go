package domain

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// TokenUpdateFunc is called when the transport refreshes an access token so
// the new token can be re-encrypted and stored.
type TokenUpdateFunc func(token *oauth2.Token) error

// Credentials are the decrypted OAuth tokens for one account, together with
// the callback that persists refreshed tokens. They are never logged.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	OnRefresh    TokenUpdateFunc
}

// MailboxProfile is the remote account snapshot returned by GetProfile
type MailboxProfile struct {
	EmailAddress  string
	HistoryID     uint64
	MessagesTotal int64
}

// RemoteMessage is a provider message normalized for reconciliation
type RemoteMessage struct {
	ID             string
	ThreadID       string
	Subject        string
	Snippet        string
	From           string
	FromName       string
	To             []string
	Cc             []string
	Bcc            []string
	BodyHTML       string
	BodyText       string
	LabelIDs       []string
	Headers        map[string]string
	InternalDate   time.Time
}

// IsUnread reports whether the remote message carries the unread label
func (m *RemoteMessage) IsUnread() bool {
	for _, l := range m.LabelIDs {
		if l == LabelUnread {
			return true
		}
	}
	return false
}

// IsStarred reports whether the remote message carries the starred label
func (m *RemoteMessage) IsStarred() bool {
	for _, l := range m.LabelIDs {
		if l == LabelStarred {
			return true
		}
	}
	return false
}

// HistoryChange is one entry of the remote change log
type HistoryChange struct {
	MessagesAdded   []string // remote message ids newly added
	LabelsChanged   []string // remote message ids whose labels changed
	MessagesDeleted []string // remote message ids removed on the remote side
}

// HistoryPage is the result of one change-log call
type HistoryPage struct {
	Changes      []HistoryChange
	NewHistoryID uint64
}

// SendReceipt is what the provider returns for a successful transmit
type SendReceipt struct {
	MessageID string
	ThreadID  string
}

// OutgoingAttachment is one binary attachment of an outbound message
type OutgoingAttachment struct {
	Filename string
	MimeType string
	Data     []byte
}

// OutgoingMessage is a fully composed outbound message. InReplyTo, References
// and ThreadID preserve conversation grouping on replies.
type OutgoingMessage struct {
	FromName    string
	FromEmail   string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	BodyHTML    string
	BodyText    string
	InReplyTo   string
	References  string
	ThreadID    string
	Attachments []OutgoingAttachment
}

// ListOptions narrows a mailbox listing call
type ListOptions struct {
	Query      string
	LabelIDs   []string
	MaxResults int64
}

// MailboxClient is the capability interface over the remote mailbox provider.
// Implementations must map a stale-watermark failure of ListHistory to
// ErrWatermarkExpired so callers can fall back to a full sync.
type MailboxClient interface {
	GetProfile(ctx context.Context, creds Credentials) (*MailboxProfile, error)
	ListMessages(ctx context.Context, creds Credentials, opts ListOptions) ([]*RemoteMessage, error)
	GetMessage(ctx context.Context, creds Credentials, remoteID string) (*RemoteMessage, error)
	ListHistory(ctx context.Context, creds Credentials, startHistoryID uint64, maxResults int64) (*HistoryPage, error)
	Send(ctx context.Context, creds Credentials, msg *OutgoingMessage) (*SendReceipt, error)
	ModifyLabels(ctx context.Context, creds Credentials, remoteID string, add, remove []string) error
}

// CredentialStore decrypts the stored OAuth tokens for an account and wires
// the refresh callback that re-encrypts rotated tokens.
type CredentialStore interface {
	Decrypt(ctx context.Context, accountID string) (Credentials, error)
	Invalidate(accountID string)
}
