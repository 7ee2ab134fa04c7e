package usecase

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"bizportal-backend/internal/mail/domain"
	"bizportal-backend/internal/mail/repository"
	"bizportal-backend/pkg/gmail"

	"github.com/microcosm-cc/bluemonday"
)

const (
	SyncTypeFull        = "full"
	SyncTypeIncremental = "incremental"
)

// SyncOptions narrows one sync invocation
type SyncOptions struct {
	ForceFullSync bool
	MaxResults    int64
	LabelFilter   string
}

// SyncResult is the outcome of one sync invocation
type SyncResult struct {
	Success           bool   `json:"success"`
	SyncType          string `json:"sync_type"`
	ThreadsProcessed  int    `json:"threads_processed"`
	MessagesProcessed int    `json:"messages_processed"`
	Error             string `json:"error,omitempty"`
}

// SyncUsecase pulls remote mailbox state into the local thread/message
// mirror, incrementally when a watermark is available.
type SyncUsecase struct {
	accountRepo   repository.AccountRepository
	syncStateRepo repository.SyncStateRepository
	threadRepo    repository.ThreadRepository
	messageRepo   repository.MessageRepository
	client        domain.MailboxClient
	credStore     domain.CredentialStore
	sanitizer     *bluemonday.Policy

	defaultMaxResults int64
	historyBatchSize  int64

	// Per-account lease: only one sync may run per account at a time.
	// A losing concurrent trigger gets ErrSyncInProgress.
	inFlight   map[string]struct{}
	inFlightMu sync.Mutex
}

// NewSyncUsecase creates the sync coordinator
func NewSyncUsecase(
	accountRepo repository.AccountRepository,
	syncStateRepo repository.SyncStateRepository,
	threadRepo repository.ThreadRepository,
	messageRepo repository.MessageRepository,
	client domain.MailboxClient,
	credStore domain.CredentialStore,
	defaultMaxResults, historyBatchSize int64,
) *SyncUsecase {
	if defaultMaxResults <= 0 {
		defaultMaxResults = 50
	}
	if historyBatchSize <= 0 {
		historyBatchSize = 100
	}
	return &SyncUsecase{
		accountRepo:       accountRepo,
		syncStateRepo:     syncStateRepo,
		threadRepo:        threadRepo,
		messageRepo:       messageRepo,
		client:            client,
		credStore:         credStore,
		sanitizer:         bluemonday.UGCPolicy(),
		defaultMaxResults: defaultMaxResults,
		historyBatchSize:  historyBatchSize,
		inFlight:          make(map[string]struct{}),
	}
}

// Sync drives one synchronization pass for an account. Strategy: full sync
// when forced or when no watermark is stored, incremental otherwise. An
// incremental failure of any kind falls back to a full sync and is never
// surfaced to the caller.
func (u *SyncUsecase) Sync(ctx context.Context, accountID string, opts SyncOptions) (*SyncResult, error) {
	account, err := u.accountRepo.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}

	if !u.acquireLease(accountID) {
		return nil, domain.ErrSyncInProgress
	}
	defer u.releaseLease(accountID)

	state, err := u.syncStateRepo.FindOrCreate(accountID)
	if err != nil {
		return nil, err
	}

	state.Status = domain.SyncStatusSyncing
	if err := u.syncStateRepo.Update(state); err != nil {
		return nil, err
	}

	creds, err := u.credStore.Decrypt(ctx, accountID)
	if err != nil {
		return u.failSync(state, err)
	}

	syncType := SyncTypeFull
	if !opts.ForceFullSync && state.HistoryID > 0 {
		syncType = SyncTypeIncremental
	}

	var counts reconcileCounts
	if syncType == SyncTypeIncremental {
		counts, err = u.incrementalSync(ctx, account, creds, state)
		if err != nil {
			// Any incremental failure, including an expired watermark,
			// transparently retries as a full sync.
			log.Printf("[SyncCoordinator] incremental sync failed for account %s, falling back to full: %v", accountID, err)
			syncType = SyncTypeFull
		}
	}
	if syncType == SyncTypeFull {
		counts, err = u.fullSync(ctx, account, creds, state, opts)
		if err != nil {
			return u.failSync(state, err)
		}
	}

	now := time.Now()
	state.Status = domain.SyncStatusIdle
	state.LastSyncedAt = &now
	state.LastError = ""
	if err := u.syncStateRepo.Update(state); err != nil {
		return nil, err
	}

	return &SyncResult{
		Success:           true,
		SyncType:          syncType,
		ThreadsProcessed:  counts.threads,
		MessagesProcessed: counts.messages,
	}, nil
}

func (u *SyncUsecase) acquireLease(accountID string) bool {
	u.inFlightMu.Lock()
	defer u.inFlightMu.Unlock()
	if _, exists := u.inFlight[accountID]; exists {
		return false
	}
	u.inFlight[accountID] = struct{}{}
	return true
}

func (u *SyncUsecase) releaseLease(accountID string) {
	u.inFlightMu.Lock()
	defer u.inFlightMu.Unlock()
	delete(u.inFlight, accountID)
}

// IsSyncing reports whether a sync pass currently holds the account's lease
func (u *SyncUsecase) IsSyncing(accountID string) bool {
	u.inFlightMu.Lock()
	defer u.inFlightMu.Unlock()
	_, exists := u.inFlight[accountID]
	return exists
}

// GetSyncState returns the account's persisted sync state
func (u *SyncUsecase) GetSyncState(accountID string) (*domain.SyncState, error) {
	return u.syncStateRepo.FindOrCreate(accountID)
}

// failSync records an unrecoverable failure. The watermark is left untouched
// so the next pass can retry from the last known-good point.
func (u *SyncUsecase) failSync(state *domain.SyncState, cause error) (*SyncResult, error) {
	state.Status = domain.SyncStatusError
	state.LastError = cause.Error()
	if err := u.syncStateRepo.Update(state); err != nil {
		log.Printf("[SyncCoordinator] failed to record sync error for account %s: %v", state.AccountID, err)
	}
	return &SyncResult{Success: false, Error: cause.Error()}, cause
}

// fullSync fetches the most recent messages and reconciles them, then
// refreshes the watermark from the current change-log head when obtainable
func (u *SyncUsecase) fullSync(ctx context.Context, account *domain.Account, creds domain.Credentials, state *domain.SyncState, opts SyncOptions) (reconcileCounts, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = u.defaultMaxResults
	}

	listOpts := domain.ListOptions{MaxResults: maxResults}
	if opts.LabelFilter != "" {
		listOpts.LabelIDs = []string{opts.LabelFilter}
	}

	remote, err := u.client.ListMessages(ctx, creds, listOpts)
	if err != nil {
		return reconcileCounts{}, err
	}

	counts := u.reconcile(account, remote)

	if profile, err := u.client.GetProfile(ctx, creds); err == nil {
		if profile.HistoryID > state.HistoryID {
			state.HistoryID = profile.HistoryID
		}
	} else {
		log.Printf("[SyncCoordinator] could not refresh watermark for account %s: %v", account.ID, err)
	}

	return counts, nil
}

// incrementalSync consumes the change log since the stored watermark.
// Deletions are applied as local trash markers without a fetch; added or
// label-changed messages are fetched in full and reconciled. The watermark
// advances to the change-log head only after reconciliation.
func (u *SyncUsecase) incrementalSync(ctx context.Context, account *domain.Account, creds domain.Credentials, state *domain.SyncState) (reconcileCounts, error) {
	page, err := u.client.ListHistory(ctx, creds, state.HistoryID, u.historyBatchSize)
	if err != nil {
		return reconcileCounts{}, err
	}

	changed := make([]string, 0)
	seen := make(map[string]struct{})
	for _, change := range page.Changes {
		for _, id := range change.MessagesAdded {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				changed = append(changed, id)
			}
		}
		for _, id := range change.LabelsChanged {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				changed = append(changed, id)
			}
		}
		for _, id := range change.MessagesDeleted {
			u.markTrashed(id)
		}
	}

	remote := make([]*domain.RemoteMessage, 0, len(changed))
	for _, id := range changed {
		msg, err := u.client.GetMessage(ctx, creds, id)
		if err != nil {
			// One unfetchable message does not abort the batch
			log.Printf("[SyncCoordinator] skipping message %s for account %s: %v", id, account.ID, err)
			continue
		}
		remote = append(remote, msg)
	}

	counts := u.reconcile(account, remote)

	if page.NewHistoryID > state.HistoryID {
		state.HistoryID = page.NewHistoryID
	}

	return counts, nil
}

// markTrashed tags a locally mirrored message with the trash label. The row
// is kept; history is preserved.
func (u *SyncUsecase) markTrashed(remoteMessageID string) {
	msg, err := u.messageRepo.FindByRemoteID(remoteMessageID)
	if err != nil {
		log.Printf("[SyncCoordinator] lookup of deleted message %s failed: %v", remoteMessageID, err)
		return
	}
	if msg == nil || msg.IsTrashed() {
		return
	}
	msg.Labels = append(msg.Labels, domain.LabelTrash)
	if err := u.messageRepo.Update(msg); err != nil {
		log.Printf("[SyncCoordinator] failed to trash message %s: %v", remoteMessageID, err)
	}
}

type reconcileCounts struct {
	threads  int
	messages int
}

// reconcile upserts threads and messages from a fetched batch. Exactly one
// thread per (account, remote thread) and one message per remote id; bodies
// and identifiers are immutable after first insert, only label and flag
// fields track later changes. An error on one item skips that item, not the
// batch.
func (u *SyncUsecase) reconcile(account *domain.Account, remote []*domain.RemoteMessage) reconcileCounts {
	var counts reconcileCounts

	groups := make(map[string][]*domain.RemoteMessage)
	order := make([]string, 0)
	for _, msg := range remote {
		if msg == nil || msg.ID == "" {
			continue
		}
		threadID := msg.ThreadID
		if threadID == "" {
			// A message without a thread id forms its own conversation
			threadID = msg.ID
		}
		if _, exists := groups[threadID]; !exists {
			order = append(order, threadID)
		}
		groups[threadID] = append(groups[threadID], msg)
	}

	for _, remoteThreadID := range order {
		group := groups[remoteThreadID]
		sort.Slice(group, func(i, j int) bool {
			return group[i].InternalDate.Before(group[j].InternalDate)
		})
		latest := group[len(group)-1]

		unread := 0
		for _, msg := range group {
			if msg.IsUnread() {
				unread++
			}
		}

		thread, err := u.threadRepo.FindByRemoteID(account.ID, remoteThreadID)
		if err != nil {
			log.Printf("[SyncCoordinator] thread lookup %s failed: %v", remoteThreadID, err)
			continue
		}

		created := false
		if thread == nil {
			thread = &domain.Thread{
				AccountID:      account.ID,
				RemoteThreadID: remoteThreadID,
				Subject:        latest.Subject,
				Snippet:        latest.Snippet,
				Participants:   participants(latest),
				Labels:         latest.LabelIDs,
				IsStarred:      latest.IsStarred(),
				MessageCount:   len(group),
				UnreadCount:    unread,
			}
			lastAt := latest.InternalDate
			thread.LastMessageAt = &lastAt
			if err := u.threadRepo.Create(thread); err != nil {
				log.Printf("[SyncCoordinator] thread create %s failed: %v", remoteThreadID, err)
				continue
			}
			created = true
			counts.threads++
		}

		inserted := 0
		for _, msg := range group {
			wasNew, err := u.upsertMessage(account, thread, msg)
			if err != nil {
				log.Printf("[SyncCoordinator] message %s failed: %v", msg.ID, err)
				continue
			}
			if wasNew {
				inserted++
				counts.messages++
			}
		}

		if !created {
			thread.Subject = latest.Subject
			thread.Snippet = latest.Snippet
			thread.Participants = participants(latest)
			thread.Labels = latest.LabelIDs
			thread.IsStarred = latest.IsStarred()
			thread.MessageCount += inserted
			// Recomputed over the fetched batch only; counts outside the
			// synced window correct themselves on the next pass that touches
			// this thread.
			thread.UnreadCount = unread
			if thread.LastMessageAt == nil || latest.InternalDate.After(*thread.LastMessageAt) {
				lastAt := latest.InternalDate
				thread.LastMessageAt = &lastAt
			}
			if err := u.threadRepo.Update(thread); err != nil {
				log.Printf("[SyncCoordinator] thread update %s failed: %v", remoteThreadID, err)
			}
		}
	}

	return counts
}

// upsertMessage inserts a message on first sight or refreshes its mutable
// label/flag fields. Returns whether a new row was created.
func (u *SyncUsecase) upsertMessage(account *domain.Account, thread *domain.Thread, remote *domain.RemoteMessage) (bool, error) {
	existing, err := u.messageRepo.FindByRemoteID(remote.ID)
	if err != nil {
		return false, err
	}

	if existing != nil {
		existing.Labels = remote.LabelIDs
		existing.IsRead = !remote.IsUnread()
		existing.IsStarred = remote.IsStarred()
		return false, u.messageRepo.Update(existing)
	}

	bodyHTML := ""
	if remote.BodyHTML != "" {
		bodyHTML = u.sanitizer.Sanitize(remote.BodyHTML)
	}

	snippet := remote.Snippet
	if snippet == "" && bodyHTML != "" {
		snippet = gmail.StripTags(bodyHTML)
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
	}

	message := &domain.Message{
		ThreadID:        thread.ID,
		AccountID:       account.ID,
		RemoteMessageID: remote.ID,
		From:            remote.From,
		FromName:        remote.FromName,
		To:              remote.To,
		Cc:              remote.Cc,
		Bcc:             remote.Bcc,
		Subject:         remote.Subject,
		Snippet:         snippet,
		BodyHTML:        bodyHTML,
		BodyText:        remote.BodyText,
		Labels:          remote.LabelIDs,
		IsRead:          !remote.IsUnread(),
		IsStarred:       remote.IsStarred(),
		Headers:         remote.Headers,
		ReceivedAt:      remote.InternalDate,
	}
	return true, u.messageRepo.Create(message)
}

// participants is the sender plus all direct and cc recipients of a message
func participants(msg *domain.RemoteMessage) []string {
	out := make([]string, 0, 1+len(msg.To)+len(msg.Cc))
	if msg.From != "" {
		out = append(out, msg.From)
	}
	out = append(out, msg.To...)
	out = append(out, msg.Cc...)
	return out
}
