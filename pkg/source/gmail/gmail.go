// Package gmail implements the statement source on the Gmail API.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jwojci/budget-agent/pkg/api"
)

// Bank statement attachments arrive as "Powiadomienie e-mail z <date>.htm";
// the date part becomes the statement's date key.
const (
	attachmentPrefix = "Powiadomienie e-mail z "
	attachmentSuffix = ".htm"
)

// Source fetches bank statement attachments from Gmail messages.
type Source struct {
	svc    *gmail.Service
	logger *slog.Logger
}

// New creates a Gmail statement source using the given authenticated HTTP client.
func New(httpClient *http.Client, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	svc, err := gmail.NewService(context.Background(), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	return &Source{svc: svc, logger: logger}, nil
}

// ListMessageIDs returns the ids of all messages from the sender received on
// or after the given date, following result pagination.
func (s *Source) ListMessageIDs(ctx context.Context, sender string, since time.Time) ([]string, error) {
	query := fmt.Sprintf("from:%s after:%s", sender, since.Format("2006/01/02"))
	s.logger.Debug("searching for statement emails", "query", query)

	var ids []string
	pageToken := ""
	for {
		call := s.svc.Users.Messages.List("me").Q(query).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("listing messages: %w", err)
		}
		for _, msg := range resp.Messages {
			ids = append(ids, msg.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	s.logger.Info("found statement emails", "sender", sender, "count", len(ids))
	return ids, nil
}

// FetchStatement returns the statement attachment of a message, or nil when
// the message carries no statement attachment (a valid outcome: not every
// bank email is a statement).
func (s *Source) FetchStatement(ctx context.Context, messageID string) (*api.Statement, error) {
	msg, err := s.svc.Users.Messages.Get("me", messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("getting message %s: %w", messageID, err)
	}

	part := findStatementPart(msg.Payload.Parts)
	if part == nil {
		s.logger.Warn("no statement attachment in message", "message_id", messageID)
		return nil, nil
	}

	attachment, err := s.svc.Users.Messages.Attachments.Get("me", messageID, part.Body.AttachmentId).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("getting attachment of message %s: %w", messageID, err)
	}

	data, err := base64.URLEncoding.DecodeString(attachment.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding attachment of message %s: %w", messageID, err)
	}

	dateKey := strings.TrimSuffix(strings.TrimPrefix(part.Filename, attachmentPrefix), attachmentSuffix)
	s.logger.Debug("fetched statement", "message_id", messageID, "date_key", dateKey, "bytes", len(data))

	return &api.Statement{DateKey: dateKey, HTML: data}, nil
}

// findStatementPart walks the MIME tree for the bank's .htm attachment.
func findStatementPart(parts []*gmail.MessagePart) *gmail.MessagePart {
	for _, part := range parts {
		if len(part.Parts) > 0 {
			if found := findStatementPart(part.Parts); found != nil {
				return found
			}
			continue
		}
		if strings.HasPrefix(part.Filename, attachmentPrefix) &&
			strings.HasSuffix(part.Filename, attachmentSuffix) &&
			part.Body != nil && part.Body.AttachmentId != "" {
			return part
		}
	}
	return nil
}
