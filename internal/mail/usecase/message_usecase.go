package usecase

import (
	"context"
	"errors"

	"bizportal-backend/internal/mail/domain"
	"bizportal-backend/internal/mail/repository"
)

// MessageUsecase applies flag and label mutations to mirrored messages,
// forwarding each change to the remote provider and mirroring it locally
type MessageUsecase struct {
	messageRepo repository.MessageRepository
	threadRepo  repository.ThreadRepository
	client      domain.MailboxClient
	credStore   domain.CredentialStore
}

// NewMessageUsecase creates the message mutation usecase
func NewMessageUsecase(
	messageRepo repository.MessageRepository,
	threadRepo repository.ThreadRepository,
	client domain.MailboxClient,
	credStore domain.CredentialStore,
) *MessageUsecase {
	return &MessageUsecase{
		messageRepo: messageRepo,
		threadRepo:  threadRepo,
		client:      client,
		credStore:   credStore,
	}
}

var errMessageNotFound = errors.New("message not found")

// ListThreads pages an account's threads, optionally filtered by label
func (u *MessageUsecase) ListThreads(accountID, label string, limit, offset int) ([]*domain.Thread, int64, error) {
	return u.threadRepo.ListByAccount(accountID, label, limit, offset)
}

// GetThread returns one mirrored thread
func (u *MessageUsecase) GetThread(id string) (*domain.Thread, error) {
	return u.threadRepo.FindByID(id)
}

// GetMessage returns one mirrored message
func (u *MessageUsecase) GetMessage(id string) (*domain.Message, error) {
	return u.messageRepo.FindByID(id)
}

// ListThreadMessages returns a thread's mirrored messages oldest first
func (u *MessageUsecase) ListThreadMessages(threadID string) ([]*domain.Message, error) {
	return u.messageRepo.ListByThread(threadID)
}

// MarkRead marks a message read remotely and locally
func (u *MessageUsecase) MarkRead(ctx context.Context, id string) error {
	return u.modify(ctx, id, nil, []string{domain.LabelUnread}, func(m *domain.Message) {
		m.IsRead = true
		m.Labels = removeLabel(m.Labels, domain.LabelUnread)
	})
}

// MarkUnread marks a message unread remotely and locally
func (u *MessageUsecase) MarkUnread(ctx context.Context, id string) error {
	return u.modify(ctx, id, []string{domain.LabelUnread}, nil, func(m *domain.Message) {
		m.IsRead = false
		m.Labels = addLabel(m.Labels, domain.LabelUnread)
	})
}

// ToggleStar flips a message's starred flag remotely and locally
func (u *MessageUsecase) ToggleStar(ctx context.Context, id string) error {
	msg, err := u.messageRepo.FindByID(id)
	if err != nil {
		return err
	}
	if msg == nil {
		return errMessageNotFound
	}

	if msg.IsStarred {
		return u.modify(ctx, id, nil, []string{domain.LabelStarred}, func(m *domain.Message) {
			m.IsStarred = false
			m.Labels = removeLabel(m.Labels, domain.LabelStarred)
		})
	}
	return u.modify(ctx, id, []string{domain.LabelStarred}, nil, func(m *domain.Message) {
		m.IsStarred = true
		m.Labels = addLabel(m.Labels, domain.LabelStarred)
	})
}

// Trash soft-deletes a message remotely and locally; the row is kept
func (u *MessageUsecase) Trash(ctx context.Context, id string) error {
	return u.modify(ctx, id, []string{domain.LabelTrash}, nil, func(m *domain.Message) {
		m.Labels = addLabel(m.Labels, domain.LabelTrash)
	})
}

// Restore removes the trash marker remotely and locally
func (u *MessageUsecase) Restore(ctx context.Context, id string) error {
	return u.modify(ctx, id, nil, []string{domain.LabelTrash}, func(m *domain.Message) {
		m.Labels = removeLabel(m.Labels, domain.LabelTrash)
	})
}

// modify applies one label mutation remote-first, then mirrors it locally
func (u *MessageUsecase) modify(ctx context.Context, id string, add, remove []string, apply func(*domain.Message)) error {
	msg, err := u.messageRepo.FindByID(id)
	if err != nil {
		return err
	}
	if msg == nil {
		return errMessageNotFound
	}

	creds, err := u.credStore.Decrypt(ctx, msg.AccountID)
	if err != nil {
		return err
	}

	if err := u.client.ModifyLabels(ctx, creds, msg.RemoteMessageID, add, remove); err != nil {
		return err
	}

	apply(msg)
	return u.messageRepo.Update(msg)
}

func addLabel(labels []string, label string) []string {
	for _, l := range labels {
		if l == label {
			return labels
		}
	}
	return append(labels, label)
}

func removeLabel(labels []string, label string) []string {
	out := labels[:0]
	for _, l := range labels {
		if l != label {
			out = append(out, l)
		}
	}
	return out
}
