package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	"bizportal-backend/internal/mail/domain"
	"bizportal-backend/internal/mail/repository"

	"github.com/google/uuid"
)

// MaxScheduleAhead caps how far in the future a send can be deferred
const MaxScheduleAhead = 30 * 24 * time.Hour

// SendParams is the outbound parameter set accepted by the send pipeline
type SendParams struct {
	AccountEmail    string                   `json:"account_email"`
	To              []string                 `json:"to"`
	Cc              []string                 `json:"cc,omitempty"`
	Bcc             []string                 `json:"bcc,omitempty"`
	Subject         string                   `json:"subject"`
	HTML            string                   `json:"html,omitempty"`
	Text            string                   `json:"text,omitempty"`
	InReplyTo       string                   `json:"in_reply_to,omitempty"`
	References      string                   `json:"references,omitempty"`
	ThreadID        string                   `json:"thread_id,omitempty"` // remote thread id for replies
	Attachments     []domain.DraftAttachment `json:"attachments,omitempty"`
	TrackingEnabled bool                     `json:"tracking_enabled,omitempty"`
}

// SendResult is returned for an immediate successful send
type SendResult struct {
	RemoteID  string `json:"id"`
	ThreadID  string `json:"thread_id,omitempty"`
	StatusID  string `json:"status_id"`
	MessageID string `json:"message_id"`
}

// ScheduleResult is returned for a deferred send
type ScheduleResult struct {
	Scheduled bool      `json:"scheduled"`
	StatusID  string    `json:"status_id"`
	SendAt    time.Time `json:"send_at"`
}

// SendUsecase composes outbound mail, transmits it through the mailbox
// client, and records a SendStatus per attempt lineage. Failures are
// classified and retried by the scanner up to the retry ceiling.
type SendUsecase struct {
	accountRepo    repository.AccountRepository
	threadRepo     repository.ThreadRepository
	messageRepo    repository.MessageRepository
	sendStatusRepo repository.SendStatusRepository
	draftRepo      repository.DraftRepository
	openEventRepo  repository.OpenEventRepository
	client         domain.MailboxClient
	credStore      domain.CredentialStore
	trackingBase   string
}

// NewSendUsecase creates the send pipeline
func NewSendUsecase(
	accountRepo repository.AccountRepository,
	threadRepo repository.ThreadRepository,
	messageRepo repository.MessageRepository,
	sendStatusRepo repository.SendStatusRepository,
	draftRepo repository.DraftRepository,
	openEventRepo repository.OpenEventRepository,
	client domain.MailboxClient,
	credStore domain.CredentialStore,
	trackingBase string,
) *SendUsecase {
	return &SendUsecase{
		accountRepo:    accountRepo,
		threadRepo:     threadRepo,
		messageRepo:    messageRepo,
		sendStatusRepo: sendStatusRepo,
		draftRepo:      draftRepo,
		openEventRepo:  openEventRepo,
		client:         client,
		credStore:      credStore,
		trackingBase:   strings.TrimRight(trackingBase, "/"),
	}
}

// Send transmits an outbound message immediately. On transport failure the
// classified failure is recorded on the SendStatus row before the error is
// returned; the retry scanner picks the row up later.
func (u *SendUsecase) Send(ctx context.Context, params SendParams) (*SendResult, error) {
	account, draft, status, err := u.prepare(params)
	if err != nil {
		return nil, err
	}
	return u.Deliver(ctx, account, draft, status)
}

// Schedule defers a send by persisting the draft and a scheduled SendStatus
// row; the periodic scanner delivers it once due. Scheduling survives
// process restarts.
func (u *SendUsecase) Schedule(ctx context.Context, params SendParams, sendAt time.Time) (*ScheduleResult, error) {
	now := time.Now()
	if sendAt.Before(now) {
		sendAt = now
	}
	if ceiling := now.Add(MaxScheduleAhead); sendAt.After(ceiling) {
		sendAt = ceiling
	}

	account, err := u.resolveAccount(params.AccountEmail)
	if err != nil {
		return nil, err
	}

	draft, err := u.persistDraft(account, params)
	if err != nil {
		return nil, err
	}

	status := &domain.SendStatus{
		AccountID:    account.ID,
		DraftID:      draft.ID,
		Status:       domain.SendStateScheduled,
		MaxRetries:   domain.DefaultMaxRetries,
		ScheduledFor: &sendAt,
	}
	if err := u.sendStatusRepo.Create(status); err != nil {
		return nil, err
	}

	return &ScheduleResult{Scheduled: true, StatusID: status.ID, SendAt: sendAt}, nil
}

// prepare resolves the account and persists the draft and the sending
// SendStatus row for an immediate send
func (u *SendUsecase) prepare(params SendParams) (*domain.Account, *domain.Draft, *domain.SendStatus, error) {
	account, err := u.resolveAccount(params.AccountEmail)
	if err != nil {
		return nil, nil, nil, err
	}

	draft, err := u.persistDraft(account, params)
	if err != nil {
		return nil, nil, nil, err
	}

	status := &domain.SendStatus{
		AccountID:  account.ID,
		DraftID:    draft.ID,
		Status:     domain.SendStateSending,
		MaxRetries: domain.DefaultMaxRetries,
	}
	if err := u.sendStatusRepo.Create(status); err != nil {
		return nil, nil, nil, err
	}
	return account, draft, status, nil
}

func (u *SendUsecase) resolveAccount(accountEmail string) (*domain.Account, error) {
	account, err := u.accountRepo.FindByEmail(accountEmail)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

// persistDraft stores the full outbound parameter set, instrumenting the
// HTML body with a tracking pixel when requested so replays reuse the same
// pixel id
func (u *SendUsecase) persistDraft(account *domain.Account, params SendParams) (*domain.Draft, error) {
	html := params.HTML
	pixelID := ""
	if params.TrackingEnabled && html != "" {
		pixelID = uuid.New().String()
		html = injectTrackingPixel(html, u.pixelURL(pixelID))
	}

	draft := &domain.Draft{
		AccountID:       account.ID,
		AccountEmail:    account.Email,
		To:              params.To,
		Cc:              params.Cc,
		Bcc:             params.Bcc,
		Subject:         params.Subject,
		BodyHTML:        html,
		BodyText:        params.Text,
		InReplyTo:       params.InReplyTo,
		References:      params.References,
		RemoteThreadID:  params.ThreadID,
		Attachments:     params.Attachments,
		TrackingEnabled: params.TrackingEnabled,
		TrackingPixelID: pixelID,
	}
	if err := u.draftRepo.Create(draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (u *SendUsecase) pixelURL(pixelID string) string {
	return fmt.Sprintf("%s/track/open/%s", u.trackingBase, pixelID)
}

// injectTrackingPixel places a 1x1 invisible image reference just before the
// closing body tag, or appends it when no closing tag is found
func injectTrackingPixel(html, pixelURL string) string {
	img := fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none" alt=""/>`, pixelURL)
	if idx := strings.LastIndex(strings.ToLower(html), "</body>"); idx >= 0 {
		return html[:idx] + img + html[idx:]
	}
	return html + img
}

// Deliver is the transport step shared by immediate sends, scheduled sends
// and the retry scanner. It transmits the drafted message, then either
// records the new local message and marks the status sent, or classifies the
// failure, schedules the next retry and re-raises the error.
func (u *SendUsecase) Deliver(ctx context.Context, account *domain.Account, draft *domain.Draft, status *domain.SendStatus) (*SendResult, error) {
	creds, err := u.credStore.Decrypt(ctx, account.ID)
	if err != nil {
		return nil, u.recordFailure(status, err)
	}

	out, err := buildOutgoing(account, draft)
	if err != nil {
		return nil, u.recordFailure(status, err)
	}

	receipt, err := u.client.Send(ctx, creds, out)
	if err != nil {
		return nil, u.recordFailure(status, err)
	}

	return u.recordSuccess(account, draft, status, receipt)
}

// recordFailure classifies the error, moves the status into the matching
// failure state and computes the next retry slot from the current retry
// count. The original error is returned for the caller.
func (u *SendUsecase) recordFailure(status *domain.SendStatus, cause error) error {
	bounce, reason := ClassifyBounce(cause.Error())

	now := time.Now()
	nextRetry := now.Add(NextRetryDelay(status.RetryCount))

	status.Status = sendStateForBounce(bounce)
	status.ErrorMessage = cause.Error()
	status.BounceType = bounce
	status.BounceReason = reason
	status.FailedAt = &now
	status.NextRetryAt = &nextRetry
	if err := u.sendStatusRepo.Update(status); err != nil {
		log.Printf("[SendPipeline] failed to record send failure on status %s: %v", status.ID, err)
	}
	return cause
}

// recordSuccess resolves or creates the local thread, inserts the sent
// message marked read, and finalizes the status row
func (u *SendUsecase) recordSuccess(account *domain.Account, draft *domain.Draft, status *domain.SendStatus, receipt *domain.SendReceipt) (*SendResult, error) {
	now := time.Now()

	remoteThreadID := receipt.ThreadID
	if remoteThreadID == "" {
		remoteThreadID = receipt.MessageID
	}

	thread, err := u.threadRepo.FindByRemoteID(account.ID, remoteThreadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		thread = &domain.Thread{
			AccountID:      account.ID,
			RemoteThreadID: remoteThreadID,
			Subject:        draft.Subject,
			Participants:   append([]string{account.Email}, draft.To...),
			Labels:         []string{"SENT"},
			MessageCount:   1,
			LastMessageAt:  &now,
		}
		if err := u.threadRepo.Create(thread); err != nil {
			return nil, err
		}
	} else {
		thread.MessageCount++
		thread.LastMessageAt = &now
		if err := u.threadRepo.Update(thread); err != nil {
			return nil, err
		}
	}

	message := &domain.Message{
		ThreadID:        thread.ID,
		AccountID:       account.ID,
		RemoteMessageID: receipt.MessageID,
		From:            account.Email,
		To:              draft.To,
		Cc:              draft.Cc,
		Bcc:             draft.Bcc,
		Subject:         draft.Subject,
		BodyHTML:        draft.BodyHTML,
		BodyText:        draft.BodyText,
		Labels:          []string{"SENT"},
		IsRead:          true,
		TrackingPixelID: draft.TrackingPixelID,
		SentAt:          &now,
		ReceivedAt:      now,
	}
	if err := u.messageRepo.Create(message); err != nil {
		return nil, err
	}

	status.Status = domain.SendStateSent
	status.MessageID = message.ID
	status.SentAt = &now
	status.ErrorMessage = ""
	status.NextRetryAt = nil
	if err := u.sendStatusRepo.Update(status); err != nil {
		return nil, err
	}

	return &SendResult{
		RemoteID:  receipt.MessageID,
		ThreadID:  thread.ID,
		StatusID:  status.ID,
		MessageID: message.ID,
	}, nil
}

// buildOutgoing turns a persisted draft into the transport message,
// base64-decoding attachment payloads
func buildOutgoing(account *domain.Account, draft *domain.Draft) (*domain.OutgoingMessage, error) {
	attachments := make([]domain.OutgoingAttachment, 0, len(draft.Attachments))
	for _, att := range draft.Attachments {
		data, err := base64.StdEncoding.DecodeString(att.Data)
		if err != nil {
			return nil, fmt.Errorf("attachment %s: %v", att.Filename, err)
		}
		attachments = append(attachments, domain.OutgoingAttachment{
			Filename: att.Filename,
			MimeType: att.MimeType,
			Data:     data,
		})
	}

	return &domain.OutgoingMessage{
		FromEmail:   account.Email,
		To:          draft.To,
		Cc:          draft.Cc,
		Bcc:         draft.Bcc,
		Subject:     draft.Subject,
		BodyHTML:    draft.BodyHTML,
		BodyText:    draft.BodyText,
		InReplyTo:   draft.InReplyTo,
		References:  draft.References,
		ThreadID:    draft.RemoteThreadID,
		Attachments: attachments,
	}, nil
}

// RecordOpen registers a tracking-pixel hit against the sent message. Unknown
// pixel ids are ignored; the endpoint always serves the pixel regardless.
func (u *SendUsecase) RecordOpen(pixelID, ipAddress, userAgent, location string) {
	message, err := u.messageRepo.FindByTrackingPixelID(pixelID)
	if err != nil {
		log.Printf("[OpenTracking] lookup for pixel %s failed: %v", pixelID, err)
		return
	}
	if message == nil {
		return
	}

	event := &domain.OpenEvent{
		MessageID:       message.ID,
		TrackingPixelID: pixelID,
		OpenedAt:        time.Now(),
		IPAddress:       ipAddress,
		UserAgent:       userAgent,
		Location:        location,
	}
	if err := u.openEventRepo.Create(event); err != nil {
		log.Printf("[OpenTracking] failed to record open for pixel %s: %v", pixelID, err)
	}
}

// GetSendStatus exposes one send lineage for status queries
func (u *SendUsecase) GetSendStatus(id string) (*domain.SendStatus, error) {
	return u.sendStatusRepo.FindByID(id)
}

// ListOpens returns the recorded open events for a sent message
func (u *SendUsecase) ListOpens(messageID string) ([]*domain.OpenEvent, error) {
	return u.openEventRepo.ListByMessage(messageID)
}
