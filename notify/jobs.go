// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

package notify

import (
	"context"
	"encoding/json"
	"fmt"
)

// MailJob is the payload of a queued send-mail job
type MailJob struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// SMSJob is the payload of a queued send-sms job
type SMSJob struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// MailJobHandler adapts a Mailer for queue delivery
func MailJobHandler(m Mailer) func(ctx context.Context, payload json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		var job MailJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return fmt.Errorf("decoding mail job: %w", err)
		}
		if job.To == "" {
			return fmt.Errorf("mail job missing recipient")
		}
		return m.Send(ctx, job.To, job.Subject, job.HTML)
	}
}

// SMSJobHandler adapts a Texter for queue delivery
func SMSJobHandler(t Texter) func(ctx context.Context, payload json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		var job SMSJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return fmt.Errorf("decoding sms job: %w", err)
		}
		if job.To == "" {
			return fmt.Errorf("sms job missing recipient")
		}
		return t.Text(ctx, job.To, job.Body)
	}
}
