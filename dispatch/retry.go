// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Benrobo/nexusai-sub001/notify"
)

// ErrRetryExhausted wraps the last error after the attempt budget is spent
var ErrRetryExhausted = errors.New("dispatch: retry budget exhausted")

// DefaultAttempts is the fixed attempt budget for synchronous retries
const DefaultAttempts = 3

// FailureClass controls what happens when the budget is exhausted
type FailureClass int

const (
	// ClassLogged failures are observable in logs only
	ClassLogged FailureClass = iota
	// ClassProvisioning failures additionally notify the owning user;
	// they are never silently dropped.
	ClassProvisioning
)

// RetryPolicy is the synchronous in-process retry helper. Retries are
// immediate; the expected window for transient provider errors is short
// enough that backoff would only stretch a live phone call.
type RetryPolicy struct {
	Attempts   int
	Class      FailureClass
	OwnerEmail string
	Mailer     notify.Mailer
	Log        *zap.Logger
}

// Do runs fn up to the attempt budget, logging every failed attempt.
// On exhaustion a ClassProvisioning policy emails the owning user before
// reporting failure to the caller.
func (p RetryPolicy) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		log.Warn("attempt failed",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(lastErr),
		)
	}

	if p.Class == ClassProvisioning {
		p.escalate(ctx, name, attempts, lastErr, log)
	}
	return fmt.Errorf("%s: %w: %w", name, ErrRetryExhausted, lastErr)
}

func (p RetryPolicy) escalate(ctx context.Context, name string, attempts int, cause error, log *zap.Logger) {
	if p.Mailer == nil || p.OwnerEmail == "" {
		log.Error("no escalation target configured for exhausted operation",
			zap.String("operation", name), zap.Error(cause))
		return
	}

	subject := fmt.Sprintf("Action needed: %s failed", name)
	html := fmt.Sprintf(
		"<p>The operation <strong>%s</strong> failed after %d attempts.</p><p>Last error: %s</p>",
		name, attempts, cause,
	)
	if err := p.Mailer.Send(ctx, p.OwnerEmail, subject, html); err != nil {
		log.Error("escalation mail failed",
			zap.String("operation", name),
			zap.String("to", p.OwnerEmail),
			zap.Error(err),
		)
	}
}
