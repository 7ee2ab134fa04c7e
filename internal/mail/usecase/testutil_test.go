package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bizportal-backend/internal/mail/domain"
	"bizportal-backend/internal/mail/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates a sqlite database in a temp directory for usecase tests
func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "mail_usecase_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tempDir, "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to open database: %v", err)
	}

	db.AutoMigrate(
		&domain.Account{},
		&domain.SyncState{},
		&domain.Thread{},
		&domain.Message{},
		&domain.SendStatus{},
		&domain.Draft{},
		&domain.OpenEvent{},
	)

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		os.RemoveAll(tempDir)
	}

	return db, cleanup
}

// repos bundles the repositories most tests need
type repos struct {
	accounts     repository.AccountRepository
	syncStates   repository.SyncStateRepository
	threads      repository.ThreadRepository
	messages     repository.MessageRepository
	sendStatuses repository.SendStatusRepository
	drafts       repository.DraftRepository
	openEvents   repository.OpenEventRepository
}

func newRepos(db *gorm.DB) repos {
	return repos{
		accounts:     repository.NewAccountRepository(db),
		syncStates:   repository.NewSyncStateRepository(db),
		threads:      repository.NewThreadRepository(db),
		messages:     repository.NewMessageRepository(db),
		sendStatuses: repository.NewSendStatusRepository(db),
		drafts:       repository.NewDraftRepository(db),
		openEvents:   repository.NewOpenEventRepository(db),
	}
}

func createTestAccount(t *testing.T, r repos, email string) *domain.Account {
	t.Helper()
	account := &domain.Account{
		UserID:                "user-1",
		Email:                 email,
		Provider:              "google",
		EncryptedAccessToken:  "enc-access",
		EncryptedRefreshToken: "enc-refresh",
	}
	if err := r.accounts.Create(account); err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	return account
}

var errNotFound = errors.New("not found")

// fakeCredStore hands out static credentials without touching the cipher
type fakeCredStore struct{}

func (fakeCredStore) Decrypt(ctx context.Context, accountID string) (domain.Credentials, error) {
	return domain.Credentials{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (fakeCredStore) Invalidate(accountID string) {}

// fakeMailboxClient is a scriptable in-memory MailboxClient
type fakeMailboxClient struct {
	profile    *domain.MailboxProfile
	profileErr error

	messages map[string]*domain.RemoteMessage
	listErr  error

	history    *domain.HistoryPage
	historyErr error

	receipt   *domain.SendReceipt
	sendErr   error
	sendCalls int

	modifyErr    error
	modifyCalls  int
	lastAdded    []string
	lastRemoved  []string
	lastModified string
}

func newFakeClient() *fakeMailboxClient {
	return &fakeMailboxClient{
		profile:  &domain.MailboxProfile{EmailAddress: "user@example.com", HistoryID: 1000},
		messages: make(map[string]*domain.RemoteMessage),
	}
}

func (f *fakeMailboxClient) addRemote(msg *domain.RemoteMessage) {
	f.messages[msg.ID] = msg
}

func (f *fakeMailboxClient) GetProfile(ctx context.Context, creds domain.Credentials) (*domain.MailboxProfile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeMailboxClient) ListMessages(ctx context.Context, creds domain.Credentials, opts domain.ListOptions) ([]*domain.RemoteMessage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*domain.RemoteMessage, 0, len(f.messages))
	for _, msg := range f.messages {
		out = append(out, msg)
	}
	return out, nil
}

func (f *fakeMailboxClient) GetMessage(ctx context.Context, creds domain.Credentials, remoteID string) (*domain.RemoteMessage, error) {
	msg, ok := f.messages[remoteID]
	if !ok {
		return nil, &domain.TransportError{Op: "get", Err: errNotFound}
	}
	return msg, nil
}

func (f *fakeMailboxClient) ListHistory(ctx context.Context, creds domain.Credentials, startHistoryID uint64, maxResults int64) (*domain.HistoryPage, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	if f.history == nil {
		return &domain.HistoryPage{NewHistoryID: startHistoryID}, nil
	}
	return f.history, nil
}

func (f *fakeMailboxClient) Send(ctx context.Context, creds domain.Credentials, msg *domain.OutgoingMessage) (*domain.SendReceipt, error) {
	f.sendCalls++
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if f.receipt != nil {
		return f.receipt, nil
	}
	return &domain.SendReceipt{MessageID: "remote-sent-1", ThreadID: "remote-thread-sent-1"}, nil
}

func (f *fakeMailboxClient) ModifyLabels(ctx context.Context, creds domain.Credentials, remoteID string, add, remove []string) error {
	f.modifyCalls++
	f.lastModified = remoteID
	f.lastAdded = add
	f.lastRemoved = remove
	return f.modifyErr
}
