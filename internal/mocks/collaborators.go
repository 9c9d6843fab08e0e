package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/wzin/datawipe/internal/accounts"
	"github.com/wzin/datawipe/internal/mail"
)

// MockAccountStore implements accounts.Store for testing.
type MockAccountStore struct {
	GetAccountFn func(ctx context.Context, ref string) (*accounts.Account, error)

	Accounts map[string]*accounts.Account
}

// NewMockAccountStore creates a mock store with an empty account map.
func NewMockAccountStore() *MockAccountStore {
	return &MockAccountStore{
		Accounts: make(map[string]*accounts.Account),
	}
}

// GetAccount implements the accounts.Store interface.
func (m *MockAccountStore) GetAccount(ctx context.Context, ref string) (*accounts.Account, error) {
	if m.GetAccountFn != nil {
		return m.GetAccountFn(ctx, ref)
	}
	account, ok := m.Accounts[ref]
	if !ok {
		return nil, accounts.ErrAccountNotFound
	}
	return account, nil
}

// MockDecryptor implements accounts.CredentialDecryptor for testing.
type MockDecryptor struct {
	DecryptFn func(ctx context.Context, handle string) (string, error)

	Secrets map[string]string
}

// Decrypt implements the accounts.CredentialDecryptor interface.
func (m *MockDecryptor) Decrypt(ctx context.Context, handle string) (string, error) {
	if m.DecryptFn != nil {
		return m.DecryptFn(ctx, handle)
	}
	return m.Secrets[handle], nil
}

// SentMessage records one outgoing email captured by MockSender.
type SentMessage struct {
	To      string
	Subject string
	Body    string
}

// MockSender implements mail.Sender for testing, capturing sent mail.
type MockSender struct {
	SendFn func(ctx context.Context, to, subject, body string) error

	mu   sync.Mutex
	sent []SentMessage
}

// Send implements the mail.Sender interface.
func (m *MockSender) Send(ctx context.Context, to, subject, body string) error {
	if m.SendFn != nil {
		return m.SendFn(ctx, to, subject, body)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMessage{To: to, Subject: subject, Body: body})
	return nil
}

// Sent returns a copy of all captured messages in send order.
func (m *MockSender) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// MockInbox implements mail.Inbox for testing. The default behavior
// delivers the queued messages on every poll, matching real inboxes
// that re-deliver until consumers deduplicate.
type MockInbox struct {
	PollFn func(ctx context.Context, since time.Time) ([]mail.Message, error)

	mu       sync.Mutex
	messages []mail.Message
}

// Deliver queues messages for subsequent polls.
func (m *MockInbox) Deliver(messages ...mail.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, messages...)
}

// Poll implements the mail.Inbox interface.
func (m *MockInbox) Poll(ctx context.Context, since time.Time) ([]mail.Message, error) {
	if m.PollFn != nil {
		return m.PollFn(ctx, since)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mail.Message
	for _, msg := range m.messages {
		if msg.ReceivedAt.IsZero() || !msg.ReceivedAt.Before(since) {
			out = append(out, msg)
		}
	}
	return out, nil
}

// Interface compliance checks
var (
	_ accounts.Store               = (*MockAccountStore)(nil)
	_ accounts.CredentialDecryptor = (*MockDecryptor)(nil)
	_ mail.Sender                  = (*MockSender)(nil)
	_ mail.Inbox                   = (*MockInbox)(nil)
)
