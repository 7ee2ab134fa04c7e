package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bizportal-backend/internal/mail/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const mailboxUser = "me"

// Service implements domain.MailboxClient on the Gmail API
type Service struct {
	clientID     string
	clientSecret string
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback domain.TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			fmt.Printf("Failed to update token: %v\n", err)
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// getGmailService creates a Gmail service from the account's stored tokens
func (s *Service) getGmailService(ctx context.Context, creds domain.Credentials) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if creds.RefreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	tokenSource := config.TokenSource(ctx, token)

	// Wrap token source to detect refreshes
	wrappedSource := &notifyTokenSource{
		src:      tokenSource,
		current:  token,
		callback: creds.OnRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}

	return srv, nil
}

// GetProfile returns the remote account snapshot including the current
// change-log head
func (s *Service) GetProfile(ctx context.Context, creds domain.Credentials) (*domain.MailboxProfile, error) {
	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return nil, err
	}

	profile, err := srv.Users.GetProfile(mailboxUser).Do()
	if err != nil {
		return nil, &domain.TransportError{Op: "get profile", Err: err}
	}

	return &domain.MailboxProfile{
		EmailAddress:  profile.EmailAddress,
		HistoryID:     profile.HistoryId,
		MessagesTotal: profile.MessagesTotal,
	}, nil
}

// ListMessages retrieves the most recent messages, optionally filtered by
// query or labels. Full message bodies are fetched with bounded concurrency.
func (s *Service) ListMessages(ctx context.Context, creds domain.Credentials, opts domain.ListOptions) ([]*domain.RemoteMessage, error) {
	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return nil, err
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}
	if maxResults > 500 {
		maxResults = 500 // Gmail API maximum
	}

	listQuery := srv.Users.Messages.List(mailboxUser).MaxResults(maxResults)
	if opts.Query != "" {
		listQuery = listQuery.Q(opts.Query)
	}
	if len(opts.LabelIDs) > 0 {
		listQuery = listQuery.LabelIds(opts.LabelIDs...)
	}

	resp, err := listQuery.Do()
	if err != nil {
		return nil, &domain.TransportError{Op: "list messages", Err: err}
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return s.fetchFull(srv, ids)
}

// fetchFull loads full message payloads in parallel, skipping any the API
// refuses to return
func (s *Service) fetchFull(srv *gmail.Service, ids []string) ([]*domain.RemoteMessage, error) {
	type result struct {
		msg *domain.RemoteMessage
		err error
	}

	resultChan := make(chan result, len(ids))
	semaphore := make(chan struct{}, 10) // Max 10 concurrent requests

	for _, id := range ids {
		go func(msgID string) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			fullMsg, err := srv.Users.Messages.Get(mailboxUser, msgID).Format("full").Do()
			if err != nil {
				resultChan <- result{nil, err}
				return
			}
			resultChan <- result{normalizeMessage(fullMsg), nil}
		}(id)
	}

	messages := make([]*domain.RemoteMessage, 0, len(ids))
	for range ids {
		r := <-resultChan
		if r.err == nil && r.msg != nil {
			messages = append(messages, r.msg)
		}
	}
	return messages, nil
}

// GetMessage retrieves one message by remote id
func (s *Service) GetMessage(ctx context.Context, creds domain.Credentials, remoteID string) (*domain.RemoteMessage, error) {
	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get(mailboxUser, remoteID).Format("full").Do()
	if err != nil {
		return nil, &domain.TransportError{Op: "get message", Err: err}
	}

	return normalizeMessage(msg), nil
}

// ListHistory fetches the change log since startHistoryID. A stale watermark
// is reported as domain.ErrWatermarkExpired so callers can fall back to a
// full sync.
func (s *Service) ListHistory(ctx context.Context, creds domain.Credentials, startHistoryID uint64, maxResults int64) (*domain.HistoryPage, error) {
	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return nil, err
	}

	if maxResults <= 0 {
		maxResults = 100
	}

	resp, err := srv.Users.History.List(mailboxUser).
		StartHistoryId(startHistoryID).
		MaxResults(maxResults).
		Do()
	if err != nil {
		if isWatermarkExpired(err) {
			return nil, domain.ErrWatermarkExpired
		}
		return nil, &domain.TransportError{Op: "list history", Err: err}
	}

	latest := startHistoryID
	if resp.HistoryId > latest {
		latest = resp.HistoryId
	}

	changes := make([]domain.HistoryChange, 0, len(resp.History))
	for _, h := range resp.History {
		if h.Id > latest {
			latest = h.Id
		}

		var change domain.HistoryChange
		for _, added := range h.MessagesAdded {
			if added.Message != nil {
				change.MessagesAdded = append(change.MessagesAdded, added.Message.Id)
			}
		}
		for _, labeled := range h.LabelsAdded {
			if labeled.Message != nil {
				change.LabelsChanged = append(change.LabelsChanged, labeled.Message.Id)
			}
		}
		for _, labeled := range h.LabelsRemoved {
			if labeled.Message != nil {
				change.LabelsChanged = append(change.LabelsChanged, labeled.Message.Id)
			}
		}
		for _, deleted := range h.MessagesDeleted {
			if deleted.Message != nil {
				change.MessagesDeleted = append(change.MessagesDeleted, deleted.Message.Id)
			}
		}
		changes = append(changes, change)
	}

	return &domain.HistoryPage{
		Changes:      changes,
		NewHistoryID: latest,
	}, nil
}

// isWatermarkExpired detects the Gmail "startHistoryId too old" condition
func isWatermarkExpired(err error) bool {
	if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code == 404 {
		return true
	}
	return strings.Contains(err.Error(), "historyId")
}

// Send transmits a composed message, preserving conversation grouping when
// the threading fields are set
func (s *Service) Send(ctx context.Context, creds domain.Credentials, out *domain.OutgoingMessage) (*domain.SendReceipt, error) {
	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return nil, err
	}

	raw := composeRaw(out)

	msg := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: out.ThreadID,
	}

	sent, err := srv.Users.Messages.Send(mailboxUser, msg).Do()
	if err != nil {
		return nil, &domain.TransportError{Op: "send", Err: err}
	}

	return &domain.SendReceipt{
		MessageID: sent.Id,
		ThreadID:  sent.ThreadId,
	}, nil
}

// composeRaw builds the RFC 2822 wire form of an outbound message
func composeRaw(out *domain.OutgoingMessage) []byte {
	var emailMsg bytes.Buffer
	boundary := "foo_bar_baz"

	// Headers
	if out.FromName != "" && out.FromEmail != "" {
		encodedName := fmt.Sprintf("=?utf-8?B?%s?=", base64.StdEncoding.EncodeToString([]byte(out.FromName)))
		emailMsg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", encodedName, out.FromEmail))
	} else if out.FromEmail != "" {
		emailMsg.WriteString(fmt.Sprintf("From: %s\r\n", out.FromEmail))
	}
	emailMsg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(out.To, ", ")))
	if len(out.Cc) > 0 {
		emailMsg.WriteString(fmt.Sprintf("Cc: %s\r\n", strings.Join(out.Cc, ", ")))
	}
	if len(out.Bcc) > 0 {
		emailMsg.WriteString(fmt.Sprintf("Bcc: %s\r\n", strings.Join(out.Bcc, ", ")))
	}
	// Encode subject to handle non-ASCII characters (RFC 2047)
	encodedSubject := fmt.Sprintf("=?utf-8?B?%s?=", base64.StdEncoding.EncodeToString([]byte(out.Subject)))
	emailMsg.WriteString(fmt.Sprintf("Subject: %s\r\n", encodedSubject))
	if out.InReplyTo != "" {
		emailMsg.WriteString(fmt.Sprintf("In-Reply-To: %s\r\n", out.InReplyTo))
	}
	if out.References != "" {
		emailMsg.WriteString(fmt.Sprintf("References: %s\r\n", out.References))
	}
	emailMsg.WriteString("MIME-Version: 1.0\r\n")
	emailMsg.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n\r\n", boundary))

	// Body: prefer HTML, fall back to plain text
	emailMsg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	if out.BodyHTML != "" {
		emailMsg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
		emailMsg.WriteString(out.BodyHTML)
	} else {
		emailMsg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		emailMsg.WriteString(out.BodyText)
	}
	emailMsg.WriteString("\r\n")

	// Attachments
	for _, att := range out.Attachments {
		encodedContent := base64.StdEncoding.EncodeToString(att.Data)

		mimeType := att.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		emailMsg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		emailMsg.WriteString(fmt.Sprintf("Content-Type: %s; name=\"%s\"\r\n", mimeType, att.Filename))
		emailMsg.WriteString("Content-Transfer-Encoding: base64\r\n")
		emailMsg.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n\r\n", att.Filename))

		// Split base64 into lines of 76 characters
		for i := 0; i < len(encodedContent); i += 76 {
			end := i + 76
			if end > len(encodedContent) {
				end = len(encodedContent)
			}
			emailMsg.WriteString(encodedContent[i:end] + "\r\n")
		}
	}

	emailMsg.WriteString(fmt.Sprintf("--%s--", boundary))
	return emailMsg.Bytes()
}

// ModifyLabels adds and/or removes labels on a remote message
func (s *Service) ModifyLabels(ctx context.Context, creds domain.Credentials, remoteID string, add, remove []string) error {
	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return err
	}

	modifyReq := &gmail.ModifyMessageRequest{}
	if len(add) > 0 {
		modifyReq.AddLabelIds = add
	}
	if len(remove) > 0 {
		modifyReq.RemoveLabelIds = remove
	}

	_, err = srv.Users.Messages.Modify(mailboxUser, remoteID, modifyReq).Do()
	if err != nil {
		return &domain.TransportError{Op: "modify labels", Err: err}
	}

	return nil
}

// Helper functions

func normalizeMessage(msg *gmail.Message) *domain.RemoteMessage {
	from := getHeader(msg.Payload.Headers, "From")
	fromName := from
	// Extract name from "Name <email@example.com>" format
	if idx := strings.Index(from, "<"); idx > 0 {
		fromName = strings.TrimSpace(from[:idx])
	}

	htmlBody, textBody := getEmailBody(msg.Payload)

	headers := make(map[string]string, len(msg.Payload.Headers))
	for _, h := range msg.Payload.Headers {
		headers[h.Name] = h.Value
	}

	return &domain.RemoteMessage{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		Subject:      getHeader(msg.Payload.Headers, "Subject"),
		Snippet:      msg.Snippet,
		From:         from,
		FromName:     fromName,
		To:           splitAddrs(getHeader(msg.Payload.Headers, "To")),
		Cc:           splitAddrs(getHeader(msg.Payload.Headers, "Cc")),
		Bcc:          splitAddrs(getHeader(msg.Payload.Headers, "Bcc")),
		BodyHTML:     htmlBody,
		BodyText:     textBody,
		LabelIDs:     msg.LabelIds,
		Headers:      headers,
		InternalDate: time.UnixMilli(msg.InternalDate),
	}
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func getEmailBody(payload *gmail.MessagePart) (htmlBody, plainBody string) {
	// If the payload itself is the body
	if payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			if payload.MimeType == "text/html" {
				return string(data), ""
			}
			return "", string(data)
		}
	}

	var findBody func(parts []*gmail.MessagePart)
	findBody = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.MimeType == "text/html" {
				if part.Body != nil && part.Body.Data != "" {
					data, err := base64.URLEncoding.DecodeString(part.Body.Data)
					if err == nil {
						htmlBody = string(data)
					}
				}
			} else if part.MimeType == "text/plain" {
				if part.Body != nil && part.Body.Data != "" {
					data, err := base64.URLEncoding.DecodeString(part.Body.Data)
					if err == nil {
						plainBody = string(data)
					}
				}
			}

			if len(part.Parts) > 0 {
				findBody(part.Parts)
			}
		}
	}

	findBody(payload.Parts)
	return htmlBody, plainBody
}

// splitAddrs parses comma-separated email addresses
func splitAddrs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripTags derives a plain-text preview from an HTML body
func StripTags(html string) string {
	preview := tagPattern.ReplaceAllString(html, " ")
	preview = strings.ReplaceAll(preview, "&nbsp;", " ")
	preview = strings.ReplaceAll(preview, "&lt;", "<")
	preview = strings.ReplaceAll(preview, "&gt;", ">")
	preview = strings.ReplaceAll(preview, "&amp;", "&")
	preview = strings.ReplaceAll(preview, "&quot;", "\"")
	return strings.Join(strings.Fields(preview), " ")
}
