package main

import (
	"log"

	api "bizportal-backend/cmd/api"
	mailDelivery "bizportal-backend/internal/mail/delivery"
	maildomain "bizportal-backend/internal/mail/domain"
	mailRepo "bizportal-backend/internal/mail/repository"
	"bizportal-backend/internal/mail/scheduler"
	mailUsecase "bizportal-backend/internal/mail/usecase"
	"bizportal-backend/pkg/cache"
	"bizportal-backend/pkg/config"
	"bizportal-backend/pkg/crypto"
	"bizportal-backend/pkg/database"
	"bizportal-backend/pkg/gmail"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&maildomain.Account{},
		&maildomain.SyncState{},
		&maildomain.Thread{},
		&maildomain.Message{},
		&maildomain.SendStatus{},
		&maildomain.Draft{},
		&maildomain.OpenEvent{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	accountRepo := mailRepo.NewAccountRepository(db)
	syncStateRepo := mailRepo.NewSyncStateRepository(db)
	threadRepo := mailRepo.NewThreadRepository(db)
	messageRepo := mailRepo.NewMessageRepository(db)
	sendStatusRepo := mailRepo.NewSendStatusRepository(db)
	draftRepo := mailRepo.NewDraftRepository(db)
	openEventRepo := mailRepo.NewOpenEventRepository(db)

	// Token cipher and decrypted-credential cache
	cipher, err := crypto.NewCipher(cfg.TokenCipherKey)
	if err != nil {
		log.Fatal("Failed to initialize token cipher:", err)
	}
	credCache := cache.New()
	credStore := mailUsecase.NewCredentialStore(accountRepo, cipher, credCache, cfg.CredentialCacheTTL)

	// Gmail client
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)

	// Initialize use cases (dependency injection)
	accountUc := mailUsecase.NewAccountUsecase(accountRepo, cipher)
	syncUc := mailUsecase.NewSyncUsecase(accountRepo, syncStateRepo, threadRepo, messageRepo, gmailService, credStore, cfg.SyncMaxResults, cfg.HistoryBatchSize)
	sendUc := mailUsecase.NewSendUsecase(accountRepo, threadRepo, messageRepo, sendStatusRepo, draftRepo, openEventRepo, gmailService, credStore, cfg.TrackingBaseURL)
	messageUc := mailUsecase.NewMessageUsecase(messageRepo, threadRepo, gmailService, credStore)

	// Retry and scheduled-send scanner
	scanner := scheduler.NewSendScanner(sendStatusRepo, draftRepo, accountRepo, sendUc, cfg.ScannerInterval)
	scanner.Start()

	// Initialize HTTP handler
	mailHandler := mailDelivery.NewMailHandler(accountUc, syncUc, sendUc, messageUc)
	handler := api.NewHandler(mailHandler, cfg)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
