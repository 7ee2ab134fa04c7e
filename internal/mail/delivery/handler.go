package delivery

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	maildomain "bizportal-backend/internal/mail/domain"
	maildto "bizportal-backend/internal/mail/dto"
	"bizportal-backend/internal/mail/usecase"

	"github.com/gin-gonic/gin"
)

type MailHandler struct {
	accountUsecase *usecase.AccountUsecase
	syncUsecase    *usecase.SyncUsecase
	sendUsecase    *usecase.SendUsecase
	messageUsecase *usecase.MessageUsecase
}

func NewMailHandler(
	accountUsecase *usecase.AccountUsecase,
	syncUsecase *usecase.SyncUsecase,
	sendUsecase *usecase.SendUsecase,
	messageUsecase *usecase.MessageUsecase,
) *MailHandler {
	return &MailHandler{
		accountUsecase: accountUsecase,
		syncUsecase:    syncUsecase,
		sendUsecase:    sendUsecase,
		messageUsecase: messageUsecase,
	}
}

// ConnectAccount stores a mailbox account granted through the portal's
// OAuth flow. Tokens are encrypted before they touch the database.
func (h *MailHandler) ConnectAccount(c *gin.Context) {
	var req maildto.ConnectAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.accountUsecase.Connect(usecase.ConnectAccountParams{
		UserID:       c.GetString("user_id"),
		Email:        req.Email,
		Provider:     req.Provider,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, account)
}

func (h *MailHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.accountUsecase.ListAccounts(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (h *MailHandler) GetAccount(c *gin.Context) {
	account, err := h.accountUsecase.GetAccount(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if account == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	c.JSON(http.StatusOK, account)
}

// TriggerSync starts a sync pass in the background and returns immediately.
// A pass already holding the account's lease yields 409.
func (h *MailHandler) TriggerSync(c *gin.Context) {
	accountID := c.Param("id")

	var req maildto.SyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if h.syncUsecase.IsSyncing(accountID) {
		c.JSON(http.StatusConflict, gin.H{"error": "sync already in progress"})
		return
	}

	opts := usecase.SyncOptions{
		ForceFullSync: req.ForceFullSync,
		LabelFilter:   req.LabelFilter,
		MaxResults:    req.MaxResults,
	}

	go func() {
		result, err := h.syncUsecase.Sync(context.Background(), accountID, opts)
		if err != nil {
			log.Printf("[MailHandler] background sync for account %s failed: %v", accountID, err)
			return
		}
		log.Printf("[MailHandler] background sync for account %s done: type=%s threads=%d messages=%d",
			accountID, result.SyncType, result.ThreadsProcessed, result.MessagesProcessed)
	}()

	c.JSON(http.StatusAccepted, gin.H{"message": "sync started"})
}

func (h *MailHandler) GetSyncState(c *gin.Context) {
	accountID := c.Param("id")

	state, err := h.syncUsecase.GetSyncState(accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := maildto.SyncStateResponse{
		AccountID: state.AccountID,
		Status:    state.Status,
		HistoryID: state.HistoryID,
		LastError: state.LastError,
	}
	if h.syncUsecase.IsSyncing(accountID) {
		resp.Status = maildomain.SyncStatusSyncing
	}
	if state.LastSyncedAt != nil {
		resp.LastSyncedAt = state.LastSyncedAt
	}

	c.JSON(http.StatusOK, resp)
}

func (h *MailHandler) ListThreads(c *gin.Context) {
	accountID := c.Param("id")
	label := c.Query("label")

	limit := 20
	offset := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	threads, total, err := h.messageUsecase.ListThreads(accountID, label, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, maildto.ThreadsResponse{
		Threads: threads,
		Limit:   limit,
		Offset:  offset,
		Total:   total,
	})
}

func (h *MailHandler) GetThread(c *gin.Context) {
	id := c.Param("id")

	thread, err := h.messageUsecase.GetThread(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if thread == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return
	}

	c.JSON(http.StatusOK, thread)
}

func (h *MailHandler) ListThreadMessages(c *gin.Context) {
	threadID := c.Param("id")

	messages, err := h.messageUsecase.ListThreadMessages(threadID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, maildto.MessagesResponse{Messages: messages})
}

func (h *MailHandler) GetMessage(c *gin.Context) {
	id := c.Param("id")

	message, err := h.messageUsecase.GetMessage(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if message == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}

	c.JSON(http.StatusOK, message)
}

func (h *MailHandler) MarkRead(c *gin.Context) {
	h.mutateMessage(c, h.messageUsecase.MarkRead, "message marked as read")
}

func (h *MailHandler) MarkUnread(c *gin.Context) {
	h.mutateMessage(c, h.messageUsecase.MarkUnread, "message marked as unread")
}

func (h *MailHandler) ToggleStar(c *gin.Context) {
	id := c.Param("id")
	if err := h.messageUsecase.ToggleStar(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	message, _ := h.messageUsecase.GetMessage(id)
	c.JSON(http.StatusOK, message)
}

func (h *MailHandler) TrashMessage(c *gin.Context) {
	h.mutateMessage(c, h.messageUsecase.Trash, "message moved to trash")
}

func (h *MailHandler) RestoreMessage(c *gin.Context) {
	h.mutateMessage(c, h.messageUsecase.Restore, "message restored")
}

func (h *MailHandler) mutateMessage(c *gin.Context, op func(context.Context, string) error, okMessage string) {
	id := c.Param("id")
	if err := op(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": okMessage})
}

// SendEmail transmits mail immediately, or persists it for the scheduler
// when send_at is set. A transport failure returns the classified bounce.
func (h *MailHandler) SendEmail(c *gin.Context) {
	var req maildto.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.To) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one recipient is required"})
		return
	}

	if req.SendAt != nil {
		result, err := h.sendUsecase.Schedule(c.Request.Context(), req.SendParams, *req.SendAt)
		if err != nil {
			if errors.Is(err, maildomain.ErrAccountNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, result)
		return
	}

	result, err := h.sendUsecase.Send(c.Request.Context(), req.SendParams)
	if err != nil {
		if errors.Is(err, maildomain.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}

		bounce, reason := usecase.ClassifyBounce(err.Error())
		c.JSON(http.StatusBadGateway, maildto.SendErrorResponse{
			Error:      err.Error(),
			BounceType: bounce,
			Reason:     reason,
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *MailHandler) GetSendStatus(c *gin.Context) {
	id := c.Param("id")

	status, err := h.sendUsecase.GetSendStatus(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if status == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "send status not found"})
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *MailHandler) ListMessageOpens(c *gin.Context) {
	events, err := h.sendUsecase.ListOpens(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, maildto.OpenEventsResponse{Events: events})
}

// 1x1 transparent GIF served by the tracking endpoint
var trackingPixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackOpen records a pixel hit and serves the GIF. The response is the
// same whether or not the pixel resolves to a message, so a probing
// client learns nothing about which ids exist.
func (h *MailHandler) TrackOpen(c *gin.Context) {
	pixelID := c.Param("pixelId")

	ip := c.ClientIP()
	userAgent := c.GetHeader("User-Agent")
	location := c.GetHeader("CF-IPCountry")

	go h.sendUsecase.RecordOpen(pixelID, ip, userAgent, location)

	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, "image/gif", trackingPixelGIF)
}
