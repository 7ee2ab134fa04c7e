package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bizportal-backend/internal/mail/domain"
)

func newSendUsecaseForTest(r repos, client *fakeMailboxClient) *SendUsecase {
	return NewSendUsecase(r.accounts, r.threads, r.messages, r.sendStatuses, r.drafts, r.openEvents, client, fakeCredStore{}, "https://portal.example.com")
}

func testSendParams(accountEmail string) SendParams {
	return SendParams{
		AccountEmail: accountEmail,
		To:           []string{"dest@example.com"},
		Subject:      "Quarterly report",
		HTML:         "<html><body><p>See attached.</p></body></html>",
	}
}

func TestSendSuccess(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	r := newRepos(db)
	account := createTestAccount(t, r, "user@example.com")

	client := newFakeClient()
	uc := newSendUsecaseForTest(r, client)

	result, err := uc.Send(context.Background(), testSendParams(account.Email))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if result.RemoteID != "remote-sent-1" {
		t.Errorf("unexpected remote id %q", result.RemoteID)
	}
	if client.sendCalls != 1 {
		t.Errorf("expected 1 transport call, got %d", client.sendCalls)
	}

	status, err := r.sendStatuses.FindByID(result.StatusID)
	if err != nil || status == nil {
		t.Fatalf("status row missing: %v", err)
	}
	if status.Status != domain.SendStateSent {
		t.Errorf("expected sent, got %s", status.Status)
	}
	if status.SentAt == nil {
		t.Error("expected SentAt to be set")
	}
	if status.RetryCount != 0 {
		t.Errorf("first attempt must not consume a retry, got %d", status.RetryCount)
	}

	message, err := r.messages.FindByID(result.MessageID)
	if err != nil || message == nil {
		t.Fatalf("sent message row missing: %v", err)
	}
	if !message.IsRead {
		t.Error("own sent message must be stored read")
	}
	if message.RemoteMessageID != "remote-sent-1" {
		t.Errorf("unexpected remote message id %q", message.RemoteMessageID)
	}

	thread, err := r.threads.FindByID(message.ThreadID)
	if err != nil || thread == nil {
		t.Fatalf("thread row missing: %v", err)
	}
	if thread.MessageCount != 1 {
		t.Errorf("expected message count 1, got %d", thread.MessageCount)
	}
}

func TestSendHardBounceRecordsFailure(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	r := newRepos(db)
	account := createTestAccount(t, r, "user@example.com")

	client := newFakeClient()
	client.sendErr = errors.New("550 5.1.1 user unknown")
	uc := newSendUsecaseForTest(r, client)

	before := time.Now()
	_, err := uc.Send(context.Background(), testSendParams(account.Email))
	if err == nil {
		t.Fatal("expected send to fail")
	}

	var status domain.SendStatus
	if err := db.First(&status).Error; err != nil {
		t.Fatalf("status row missing: %v", err)
	}
	if status.Status != domain.SendStateHard {
		t.Errorf("expected hard state, got %s", status.Status)
	}
	if status.BounceType != domain.BounceHard {
		t.Errorf("expected hard bounce, got %s", status.BounceType)
	}
	if status.BounceReason != "user unknown" {
		t.Errorf("unexpected bounce reason %q", status.BounceReason)
	}
	if status.RetryCount != 0 {
		t.Errorf("failing attempt must not touch the retry count, got %d", status.RetryCount)
	}
	if status.NextRetryAt == nil {
		t.Fatal("expected a retry slot")
	}
	wantEarliest := before.Add(NextRetryDelay(0))
	if status.NextRetryAt.Before(wantEarliest.Add(-time.Second)) {
		t.Errorf("retry slot %v earlier than backoff %v", status.NextRetryAt, wantEarliest)
	}
	if status.FailedAt == nil {
		t.Error("expected FailedAt to be set")
	}

	var count int64
	db.Model(&domain.Message{}).Count(&count)
	if count != 0 {
		t.Errorf("failed send must not create a local message, found %d", count)
	}
}

func TestSendUnknownAccount(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	r := newRepos(db)
	uc := newSendUsecaseForTest(r, newFakeClient())

	_, err := uc.Send(context.Background(), testSendParams("nobody@example.com"))
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestTrackingPixelInjection(t *testing.T) {
	html := "<html><body><p>Hi</p></body></html>"
	out := injectTrackingPixel(html, "https://portal.example.com/track/open/abc")

	idx := strings.Index(out, `<img src="https://portal.example.com/track/open/abc"`)
	if idx < 0 {
		t.Fatal("pixel not injected")
	}
	if !strings.HasSuffix(out, "</body></html>") {
		t.Errorf("pixel must sit before the closing body tag, got %q", out)
	}

	// No closing body tag: the pixel is appended
	out = injectTrackingPixel("<p>Hi</p>", "https://portal.example.com/track/open/abc")
	if !strings.HasSuffix(out, `alt=""/>`) {
		t.Errorf("pixel must be appended, got %q", out)
	}
}

func TestSendWithTrackingRecordsOpens(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	r := newRepos(db)
	account := createTestAccount(t, r, "user@example.com")

	client := newFakeClient()
	uc := newSendUsecaseForTest(r, client)

	params := testSendParams(account.Email)
	params.TrackingEnabled = true

	result, err := uc.Send(context.Background(), params)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	message, _ := r.messages.FindByID(result.MessageID)
	if message.TrackingPixelID == "" {
		t.Fatal("expected a tracking pixel id on the sent message")
	}
	if !strings.Contains(message.BodyHTML, message.TrackingPixelID) {
		t.Error("stored body must embed the pixel so replays reuse it")
	}

	uc.RecordOpen(message.TrackingPixelID, "203.0.113.9", "Mozilla/5.0", "NL")
	uc.RecordOpen("unknown-pixel", "203.0.113.9", "Mozilla/5.0", "NL")

	events, err := r.openEvents.ListByMessage(message.ID)
	if err != nil {
		t.Fatalf("ListByMessage failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly 1 open event, got %d", len(events))
	}
	if events[0].IPAddress != "203.0.113.9" || events[0].Location != "NL" {
		t.Errorf("open event lost request metadata: %+v", events[0])
	}
}

func TestScheduleClampsAndPersists(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	r := newRepos(db)
	account := createTestAccount(t, r, "user@example.com")

	uc := newSendUsecaseForTest(r, newFakeClient())

	farFuture := time.Now().Add(90 * 24 * time.Hour)
	result, err := uc.Schedule(context.Background(), testSendParams(account.Email), farFuture)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if !result.Scheduled {
		t.Fatal("expected a scheduled result")
	}

	ceiling := time.Now().Add(MaxScheduleAhead)
	if result.SendAt.After(ceiling.Add(time.Minute)) {
		t.Errorf("send time %v exceeds the scheduling ceiling", result.SendAt)
	}

	status, err := r.sendStatuses.FindByID(result.StatusID)
	if err != nil || status == nil {
		t.Fatalf("status row missing: %v", err)
	}
	if status.Status != domain.SendStateScheduled {
		t.Errorf("expected scheduled state, got %s", status.Status)
	}
	if status.ScheduledFor == nil {
		t.Fatal("expected ScheduledFor to be persisted")
	}

	draft, err := r.drafts.FindByID(status.DraftID)
	if err != nil || draft == nil {
		t.Fatalf("draft row missing: %v", err)
	}
	if draft.Subject != "Quarterly report" {
		t.Errorf("draft lost the send parameters: %+v", draft)
	}
}

func TestSchedulePastTimeSendsImmediatelyOnNextScan(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	r := newRepos(db)
	account := createTestAccount(t, r, "user@example.com")

	uc := newSendUsecaseForTest(r, newFakeClient())

	result, err := uc.Schedule(context.Background(), testSendParams(account.Email), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	due, err := r.sendStatuses.FindDueScheduled(time.Now().Add(time.Second), 10)
	if err != nil {
		t.Fatalf("FindDueScheduled failed: %v", err)
	}
	if len(due) != 1 || due[0].ID != result.StatusID {
		t.Errorf("past-dated schedule must be immediately due, got %d rows", len(due))
	}
}
