// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

package webhook

import (
	"context"
	"time"

	"github.com/Benrobo/nexusai-sub001/kv"
)

// RateLimiter caps webhook deliveries per client IP over a fixed
// window, counted with one atomic increment per request. Store errors
// fail open: a live phone call must never be dropped because the
// limiter's backend hiccuped.
type RateLimiter struct {
	kv     kv.Store
	window time.Duration
	max    int
}

// NewRateLimiter creates a limiter allowing max requests per window per IP
func NewRateLimiter(store kv.Store, window time.Duration, max int) *RateLimiter {
	if window <= 0 {
		window = 20 * time.Second
	}
	if max <= 0 {
		max = 30
	}
	return &RateLimiter{kv: store, window: window, max: max}
}

// Allow reports whether a request from ip may proceed
func (l *RateLimiter) Allow(ctx context.Context, ip string) bool {
	n, err := l.kv.Incr(ctx, "rl:ip:"+ip, l.window)
	if err != nil {
		return true
	}
	return n <= int64(l.max)
}
