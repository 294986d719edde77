package notify

import (
	"context"
	"sync"
)

// MockMailer is a test double that records sent mail
type MockMailer struct {
	mu   sync.Mutex
	sent []MockMail
	// SendErr, when set, is returned by every Send
	SendErr error
}

// MockMail records one sent message
type MockMail struct {
	To      string
	Subject string
	HTML    string
}

// NewMockMailer creates a new mock
func NewMockMailer() *MockMailer {
	return &MockMailer{}
}

func (m *MockMailer) Send(_ context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, MockMail{To: to, Subject: subject, HTML: html})
	return nil
}

// Sent returns a copy of the recorded messages
func (m *MockMailer) Sent() []MockMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockMail{}, m.sent...)
}
