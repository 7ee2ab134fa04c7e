package delivery

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bizportal-backend/internal/mail/domain"
	"bizportal-backend/internal/mail/repository"
	"bizportal-backend/internal/mail/usecase"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupHandlerTest(t *testing.T) (*MailHandler, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tempDir, err := os.MkdirTemp("", "handler_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(tempDir, "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to open database: %v", err)
	}
	db.AutoMigrate(&domain.Account{}, &domain.Thread{}, &domain.Message{}, &domain.SendStatus{}, &domain.Draft{}, &domain.OpenEvent{})

	accountRepo := repository.NewAccountRepository(db)
	threadRepo := repository.NewThreadRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	statusRepo := repository.NewSendStatusRepository(db)
	draftRepo := repository.NewDraftRepository(db)
	openEventRepo := repository.NewOpenEventRepository(db)

	sendUc := usecase.NewSendUsecase(accountRepo, threadRepo, messageRepo, statusRepo, draftRepo, openEventRepo, nil, nil, "https://portal.example.com")
	handler := NewMailHandler(nil, nil, sendUc, nil)

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		os.RemoveAll(tempDir)
	}

	return handler, cleanup
}

// The tracking endpoint must serve the identical pixel for known and unknown
// ids so it cannot be used to probe which ids exist.
func TestTrackOpenAlwaysServesPixel(t *testing.T) {
	handler, cleanup := setupHandlerTest(t)
	defer cleanup()

	r := gin.New()
	r.GET("/track/open/:pixelId", handler.TrackOpen)

	for _, pixelID := range []string{"known-or-not", "definitely-unknown"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/track/open/"+pixelID, nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("pixel %s: expected 200, got %d", pixelID, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "image/gif" {
			t.Errorf("pixel %s: expected image/gif, got %s", pixelID, ct)
		}
		if !bytes.Equal(w.Body.Bytes(), trackingPixelGIF) {
			t.Errorf("pixel %s: response body differs from the fixed pixel", pixelID)
		}
	}
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimiter(3, time.Minute))
	r.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	okCount, limited := 0, 0
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "198.51.100.7:1234"
		r.ServeHTTP(w, req)

		switch w.Code {
		case http.StatusOK:
			okCount++
		case http.StatusTooManyRequests:
			limited++
		default:
			t.Fatalf("unexpected status %d", w.Code)
		}
	}

	if okCount != 3 {
		t.Errorf("expected 3 allowed requests, got %d", okCount)
	}
	if limited != 7 {
		t.Errorf("expected 7 limited requests, got %d", limited)
	}
}
