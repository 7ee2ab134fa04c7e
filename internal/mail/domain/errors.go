package domain

import "errors"

var (
	// ErrWatermarkExpired means the stored history watermark is no longer
	// valid on the remote side; callers fall back to a full sync.
	ErrWatermarkExpired = errors.New("history watermark expired")

	// ErrSyncInProgress means another sync already holds the account lease
	ErrSyncInProgress = errors.New("sync already running for account")

	// ErrAccountNotFound means the account id resolves to no connected mailbox
	ErrAccountNotFound = errors.New("account not found")

	// ErrDraftNotFound means the originating draft of a send no longer exists
	ErrDraftNotFound = errors.New("draft not found")
)

// TransportError wraps a failure returned by the mailbox provider
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "transport " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
