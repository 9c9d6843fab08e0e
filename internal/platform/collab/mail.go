package collab

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wzin/datawipe/internal/mail"
)

// MailClient implements mail.Sender and mail.Inbox against the mail
// relay, which owns SMTP/IMAP mechanics and inbound parsing.
type MailClient struct {
	client
	fromAddress string
	fromName    string
}

// Compile-time interface checks.
var (
	_ mail.Sender = (*MailClient)(nil)
	_ mail.Inbox  = (*MailClient)(nil)
)

// NewMailClient creates a client for the mail relay at baseURL. The
// from identity rides along on every send.
func NewMailClient(baseURL string, timeout time.Duration, fromAddress, fromName string) *MailClient {
	return &MailClient{
		client:      newClient(baseURL, timeout),
		fromAddress: fromAddress,
		fromName:    fromName,
	}
}

type sendRequest struct {
	FromAddress string `json:"from_address"`
	FromName    string `json:"from_name,omitempty"`
	To          string `json:"to"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}

// Send implements mail.Sender.
func (c *MailClient) Send(ctx context.Context, to, subject, body string) error {
	req := sendRequest{
		FromAddress: c.fromAddress,
		FromName:    c.fromName,
		To:          to,
		Subject:     subject,
		Body:        body,
	}
	return c.doJSON(ctx, http.MethodPost, "/send", req, nil)
}

type inboundMessage struct {
	MessageID  string    `json:"message_id"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

type pollResponse struct {
	Messages []inboundMessage `json:"messages"`
}

// Poll implements mail.Inbox. The relay may re-deliver messages across
// polls; the correlator deduplicates by message ID.
func (c *MailClient) Poll(ctx context.Context, since time.Time) ([]mail.Message, error) {
	query := url.Values{"since": {strconv.FormatInt(since.Unix(), 10)}}

	var resp pollResponse
	if err := c.doJSON(ctx, http.MethodGet, "/inbox?"+query.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	messages := make([]mail.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		messages = append(messages, mail.Message{
			MessageID:  m.MessageID,
			From:       m.From,
			Subject:    m.Subject,
			Body:       m.Body,
			ReceivedAt: m.ReceivedAt,
		})
	}
	return messages, nil
}
