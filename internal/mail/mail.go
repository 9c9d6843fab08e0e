// Package mail defines the engine's boundary to the mail collaborator:
// sending erasure-request email and polling parsed inbound messages.
// SMTP/IMAP mechanics live behind these interfaces.
package mail

import (
	"context"
	"strings"
	"time"
)

// Message is one parsed inbound email as delivered by the mail
// collaborator. Body is plain text; HTML stripping happens upstream.
type Message struct {
	MessageID  string
	From       string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// SenderDomain extracts the domain of the From address, lowercased and
// with a leading www. removed. Returns "" when the address is malformed.
func (m Message) SenderDomain() string {
	addr := m.From
	// Handle "Display Name <user@host>" forms.
	if start := strings.LastIndex(addr, "<"); start >= 0 {
		if end := strings.Index(addr[start:], ">"); end > 0 {
			addr = addr[start+1 : start+end]
		}
	}
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	domain := strings.ToLower(strings.TrimSpace(addr[at+1:]))
	return strings.TrimPrefix(domain, "www.")
}

// Sender sends outgoing mail. Implementations are external; the engine
// only depends on this capability.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Inbox delivers parsed inbound messages. Poll returns messages received
// at or after since; implementations may re-deliver messages across
// polls, so consumers must deduplicate by MessageID.
type Inbox interface {
	Poll(ctx context.Context, since time.Time) ([]Message, error)
}
