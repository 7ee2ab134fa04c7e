package api

import (
	"net/http"
	"time"

	authDelivery "bizportal-backend/internal/auth/delivery"
	mailDelivery "bizportal-backend/internal/mail/delivery"
	"bizportal-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, mailHandler *mailDelivery.MailHandler, cfg *config.Config) {
	// Tracking pixels are fetched by recipient mail clients, so no auth.
	// Rate limited per IP to blunt pixel-id probing.
	track := r.Group("/track")
	track.Use(mailDelivery.RateLimiter(60, time.Minute))
	{
		track.GET("/open/:pixelId", mailHandler.TrackOpen)
	}

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		auth := authDelivery.AuthMiddleware(cfg.JWTSecret)

		// Account routes (protected)
		accounts := api.Group("/accounts")
		accounts.Use(auth)
		{
			accounts.POST("", mailHandler.ConnectAccount)
			accounts.GET("", mailHandler.ListAccounts)
			accounts.GET("/:id", mailHandler.GetAccount)
			accounts.POST("/:id/sync", mailHandler.TriggerSync)
			accounts.GET("/:id/sync", mailHandler.GetSyncState)
			accounts.GET("/:id/threads", mailHandler.ListThreads)
		}

		// Thread routes (protected)
		threads := api.Group("/threads")
		threads.Use(auth)
		{
			threads.GET("/:id", mailHandler.GetThread)
			threads.GET("/:id/messages", mailHandler.ListThreadMessages)
		}

		// Message routes (protected)
		messages := api.Group("/messages")
		messages.Use(auth)
		{
			messages.GET("/:id", mailHandler.GetMessage)
			messages.GET("/:id/opens", mailHandler.ListMessageOpens)
			messages.PATCH("/:id/read", mailHandler.MarkRead)
			messages.PATCH("/:id/unread", mailHandler.MarkUnread)
			messages.PATCH("/:id/star", mailHandler.ToggleStar)
			messages.POST("/:id/trash", mailHandler.TrashMessage)
			messages.POST("/:id/restore", mailHandler.RestoreMessage)
		}

		// Send routes (protected)
		emails := api.Group("/emails")
		emails.Use(auth)
		{
			emails.POST("/send", mailHandler.SendEmail)
			emails.GET("/status/:id", mailHandler.GetSendStatus)
		}
	}
}
