package scheduler

import (
	"context"
	"log"
	"time"

	"bizportal-backend/internal/mail/domain"
	"bizportal-backend/internal/mail/repository"
	"bizportal-backend/internal/mail/usecase"
)

// retryScanLimit caps how many rows one pass picks up
const retryScanLimit = 50

// RetryStats summarizes one retry pass
type RetryStats struct {
	Scanned   int `json:"scanned"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// SendScanner periodically re-drives failed sends through the delivery
// pipeline and releases scheduled sends once due
type SendScanner struct {
	sendStatusRepo repository.SendStatusRepository
	draftRepo      repository.DraftRepository
	accountRepo    repository.AccountRepository
	sendUsecase    *usecase.SendUsecase
	interval       time.Duration
	stopChan       chan struct{}
}

// NewSendScanner creates the scanner
func NewSendScanner(
	sendStatusRepo repository.SendStatusRepository,
	draftRepo repository.DraftRepository,
	accountRepo repository.AccountRepository,
	sendUsecase *usecase.SendUsecase,
	interval time.Duration,
) *SendScanner {
	if interval <= 0 {
		interval = 1 * time.Minute
	}
	return &SendScanner{
		sendStatusRepo: sendStatusRepo,
		draftRepo:      draftRepo,
		accountRepo:    accountRepo,
		sendUsecase:    sendUsecase,
		interval:       interval,
		stopChan:       make(chan struct{}),
	}
}

// Start begins the scanner loop
func (s *SendScanner) Start() {
	log.Printf("[SendScanner] starting (interval: %s)", s.interval)

	go func() {
		// Run immediately on start
		s.runOnce()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.stopChan:
				log.Println("[SendScanner] stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scanner
func (s *SendScanner) Stop() {
	close(s.stopChan)
}

func (s *SendScanner) runOnce() {
	ctx := context.Background()
	s.RunScheduledSends(ctx)
	s.RunAutoRetry(ctx)
}

// RunAutoRetry selects failure rows under their retry ceiling whose retry
// slot has passed and re-drives them through the transport step. A row whose
// originating draft is gone is skipped without mutation. Once a row's retry
// count reaches its ceiling it stays in its last failure state.
func (s *SendScanner) RunAutoRetry(ctx context.Context) RetryStats {
	var stats RetryStats

	rows, err := s.sendStatusRepo.FindRetryable(time.Now(), retryScanLimit)
	if err != nil {
		log.Printf("[RetryScanner] selection failed: %v", err)
		return stats
	}
	stats.Scanned = len(rows)

	for _, row := range rows {
		draft, err := s.draftRepo.FindByID(row.DraftID)
		if err != nil {
			log.Printf("[RetryScanner] draft lookup for status %s failed: %v", row.ID, err)
			stats.Skipped++
			continue
		}
		if draft == nil {
			log.Printf("[RetryScanner] draft for status %s no longer exists, skipping", row.ID)
			stats.Skipped++
			continue
		}

		account, err := s.accountRepo.FindByID(row.AccountID)
		if err != nil || account == nil {
			log.Printf("[RetryScanner] account %s for status %s unavailable", row.AccountID, row.ID)
			stats.Skipped++
			continue
		}

		row.RetryCount++
		row.Status = domain.SendStateSending
		if err := s.sendStatusRepo.Update(row); err != nil {
			log.Printf("[RetryScanner] failed to claim status %s: %v", row.ID, err)
			stats.Skipped++
			continue
		}

		if _, err := s.sendUsecase.Deliver(ctx, account, draft, row); err != nil {
			// Deliver reclassified the failure and recomputed the retry slot
			// from the incremented count
			log.Printf("[RetryScanner] retry %d/%d for status %s failed: %v", row.RetryCount, row.MaxRetries, row.ID, err)
			stats.Failed++
			continue
		}
		stats.Succeeded++
	}

	return stats
}

// RunScheduledSends releases scheduled sends whose due time has passed. A
// scheduled row whose draft was deleted is moved to failed so it is not
// rescanned.
func (s *SendScanner) RunScheduledSends(ctx context.Context) {
	rows, err := s.sendStatusRepo.FindDueScheduled(time.Now(), retryScanLimit)
	if err != nil {
		log.Printf("[SendScanner] scheduled selection failed: %v", err)
		return
	}

	for _, row := range rows {
		draft, err := s.draftRepo.FindByID(row.DraftID)
		if err != nil {
			log.Printf("[SendScanner] draft lookup for scheduled status %s failed: %v", row.ID, err)
			continue
		}
		if draft == nil {
			now := time.Now()
			row.Status = domain.SendStateFailed
			row.ErrorMessage = "draft no longer exists"
			row.FailedAt = &now
			if err := s.sendStatusRepo.Update(row); err != nil {
				log.Printf("[SendScanner] failed to fail scheduled status %s: %v", row.ID, err)
			}
			continue
		}

		account, err := s.accountRepo.FindByID(row.AccountID)
		if err != nil || account == nil {
			log.Printf("[SendScanner] account %s for scheduled status %s unavailable", row.AccountID, row.ID)
			continue
		}

		row.Status = domain.SendStateSending
		if err := s.sendStatusRepo.Update(row); err != nil {
			log.Printf("[SendScanner] failed to claim scheduled status %s: %v", row.ID, err)
			continue
		}

		if _, err := s.sendUsecase.Deliver(ctx, account, draft, row); err != nil {
			// The failure was recorded on the row; the retry scanner takes
			// over from here
			log.Printf("[SendScanner] scheduled send %s failed: %v", row.ID, err)
		}
	}
}
