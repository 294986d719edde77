// Package notify delivers user-facing notifications over mail and SMS.
// Retry escalations go through mail; SMS is reserved for caller-facing
// follow-ups queued as background jobs.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Mailer sends transactional email
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

const defaultResendBaseURL = "https://api.resend.com"

// ResendMailer implements Mailer on the Resend REST API
type ResendMailer struct {
	client  *http.Client
	baseURL string
	apiKey  string
	from    string
}

// ResendOption configures the mailer
type ResendOption func(*ResendMailer)

// WithResendBaseURL overrides the API endpoint (tests point this at a stub)
func WithResendBaseURL(baseURL string) ResendOption {
	return func(m *ResendMailer) {
		m.baseURL = baseURL
	}
}

// NewResendMailer creates a mailer sending from the given address
func NewResendMailer(apiKey, from string, opts ...ResendOption) *ResendMailer {
	m := &ResendMailer{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultResendBaseURL,
		apiKey:  apiKey,
		from:    from,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type sendMailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send delivers one email
func (m *ResendMailer) Send(ctx context.Context, to, subject, html string) error {
	payload, err := json.Marshal(sendMailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("encoding mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mail provider returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
