package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"bizportal-backend/internal/mail/domain"
)

func seedMessage(t *testing.T, r repos, accountID string, labels ...string) *domain.Message {
	t.Helper()

	thread := &domain.Thread{AccountID: accountID, RemoteThreadID: "t1", Subject: "Hello"}
	if err := r.threads.Create(thread); err != nil {
		t.Fatalf("Failed to create thread: %v", err)
	}

	msg := &domain.Message{
		ThreadID:        thread.ID,
		AccountID:       accountID,
		RemoteMessageID: "m1",
		Subject:         "Hello",
		Labels:          labels,
		ReceivedAt:      time.Now(),
	}
	if err := r.messages.Create(msg); err != nil {
		t.Fatalf("Failed to create message: %v", err)
	}
	return msg
}

func TestMarkReadForwardsAndMirrors(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	r := newRepos(db)
	account := createTestAccount(t, r, "user@example.com")
	msg := seedMessage(t, r, account.ID, domain.LabelUnread)

	client := newFakeClient()
	uc := NewMessageUsecase(r.messages, r.threads, client, fakeCredStore{})

	if err := uc.MarkRead(context.Background(), msg.ID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	if client.modifyCalls != 1 || client.lastModified != "m1" {
		t.Errorf("remote modify not forwarded: calls=%d id=%s", client.modifyCalls, client.lastModified)
	}
	if len(client.lastRemoved) != 1 || client.lastRemoved[0] != domain.LabelUnread {
		t.Errorf("expected unread label removal, got %v", client.lastRemoved)
	}

	after, _ := r.messages.FindByID(msg.ID)
	if !after.IsRead {
		t.Error("local row not marked read")
	}
	for _, l := range after.Labels {
		if l == domain.LabelUnread {
			t.Error("unread label still on local row")
		}
	}
}

func TestToggleStarFlipsBothWays(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	r := newRepos(db)
	account := createTestAccount(t, r, "user@example.com")
	msg := seedMessage(t, r, account.ID)

	client := newFakeClient()
	uc := NewMessageUsecase(r.messages, r.threads, client, fakeCredStore{})

	if err := uc.ToggleStar(context.Background(), msg.ID); err != nil {
		t.Fatalf("ToggleStar failed: %v", err)
	}
	after, _ := r.messages.FindByID(msg.ID)
	if !after.IsStarred {
		t.Fatal("expected starred after first toggle")
	}

	if err := uc.ToggleStar(context.Background(), msg.ID); err != nil {
		t.Fatalf("second ToggleStar failed: %v", err)
	}
	after, _ = r.messages.FindByID(msg.ID)
	if after.IsStarred {
		t.Error("expected unstarred after second toggle")
	}
}

func TestTrashKeepsRow(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	r := newRepos(db)
	account := createTestAccount(t, r, "user@example.com")
	msg := seedMessage(t, r, account.ID)

	client := newFakeClient()
	uc := NewMessageUsecase(r.messages, r.threads, client, fakeCredStore{})

	if err := uc.Trash(context.Background(), msg.ID); err != nil {
		t.Fatalf("Trash failed: %v", err)
	}
	after, _ := r.messages.FindByID(msg.ID)
	if after == nil {
		t.Fatal("trashing must keep the row")
	}
	if !after.IsTrashed() {
		t.Error("expected trash label")
	}

	if err := uc.Restore(context.Background(), msg.ID); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	after, _ = r.messages.FindByID(msg.ID)
	if after.IsTrashed() {
		t.Error("expected trash label removed")
	}
}

func TestRemoteFailureLeavesLocalUntouched(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	r := newRepos(db)
	account := createTestAccount(t, r, "user@example.com")
	msg := seedMessage(t, r, account.ID, domain.LabelUnread)

	client := newFakeClient()
	client.modifyErr = errors.New("remote unavailable")
	uc := NewMessageUsecase(r.messages, r.threads, client, fakeCredStore{})

	if err := uc.MarkRead(context.Background(), msg.ID); err == nil {
		t.Fatal("expected remote failure to surface")
	}

	after, _ := r.messages.FindByID(msg.ID)
	if after.IsRead {
		t.Error("local row mutated despite remote failure")
	}
}

func TestMutationOnUnknownMessage(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	r := newRepos(db)
	uc := NewMessageUsecase(r.messages, r.threads, newFakeClient(), fakeCredStore{})

	if err := uc.MarkRead(context.Background(), "missing"); err == nil {
		t.Error("expected an error for an unknown message")
	}
}
