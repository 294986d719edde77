// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

// Package session persists per-call conversation state in the expiring
// cache and serializes access to it with a short-lived advisory lock per
// call reference id. The lock closes the lost-update window between two
// concurrent webhooks for the same call.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Benrobo/nexusai-sub001/kv"
	"github.com/Benrobo/nexusai-sub001/model"
)

var (
	// ErrNotFound means no session exists for the call reference id
	ErrNotFound = errors.New("session: not found")
	// ErrLockContention means another handler currently owns the call
	ErrLockContention = errors.New("session: lock contention")
)

const (
	sessionKeyPrefix = "call:sess:"
	lockKeyPrefix    = "call:lock:"
)

// Store reads and writes call sessions
type Store struct {
	kv      kv.Store
	clock   kv.Clock
	ttl     time.Duration
	lockTTL time.Duration
	log     *zap.Logger
}

// StoreOption configures the store
type StoreOption func(*Store)

// WithTTL sets the session lifetime, refreshed on every turn
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithLockTTL sets the advisory lock window
func WithLockTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.lockTTL = ttl
	}
}

// WithClock sets the time source
func WithClock(clock kv.Clock) StoreOption {
	return func(s *Store) {
		s.clock = clock
	}
}

// NewStore creates a session store with a 30 minute default TTL and a
// 5 second lock window.
func NewStore(store kv.Store, log *zap.Logger, opts ...StoreOption) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		kv:      store,
		clock:   kv.NewAutoClock(),
		ttl:     30 * time.Minute,
		lockTTL: 5 * time.Second,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire takes the per-call lock. The release function is safe to call
// once; it deletes the lock only while this handler still owns it.
func (s *Store) Acquire(ctx context.Context, callRef string) (release func(), err error) {
	token := uuid.NewString()
	key := lockKeyPrefix + callRef

	ok, err := s.kv.SetNX(ctx, key, token, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock for %s: %w", callRef, err)
	}
	if !ok {
		return nil, ErrLockContention
	}

	return func() {
		// Releasing someone else's lock (ours lapsed and was re-acquired)
		// would reopen the race, so check ownership first.
		val, err := s.kv.Get(ctx, key)
		if err != nil || val != token {
			return
		}
		if err := s.kv.Delete(ctx, key); err != nil {
			s.log.Warn("releasing call lock failed", zap.String("call_ref", callRef), zap.Error(err))
		}
	}, nil
}

// Load reads the session for a call reference id. A payload that fails to
// deserialize is treated as absent: rebuilding context is cheaper and
// safer than failing a live call.
func (s *Store) Load(ctx context.Context, callRef string) (*model.CallSession, error) {
	raw, err := s.kv.Get(ctx, sessionKeyPrefix+callRef)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", callRef, err)
	}

	sess, err := model.UnmarshalSession([]byte(raw))
	if err != nil {
		s.log.Warn("corrupt session payload, starting fresh",
			zap.String("call_ref", callRef), zap.Error(err))
		if err := s.kv.Delete(ctx, sessionKeyPrefix+callRef); err != nil {
			s.log.Warn("deleting corrupt session failed", zap.String("call_ref", callRef), zap.Error(err))
		}
		return nil, ErrNotFound
	}
	return sess, nil
}

// New initializes a fresh session in the given state; it is not persisted
// until Save is called.
func (s *Store) New(callRef string, state model.CallState) *model.CallSession {
	now := s.clock.Now()
	return &model.CallSession{
		CallRefID: callRef,
		State:     state,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
}

// Save writes the session back and refreshes its TTL
func (s *Store) Save(ctx context.Context, sess *model.CallSession) error {
	sess.ExpiresAt = s.clock.Now().Add(s.ttl)
	data, err := sess.Marshal()
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", sess.CallRefID, err)
	}
	if err := s.kv.Set(ctx, sessionKeyPrefix+sess.CallRefID, string(data), s.ttl); err != nil {
		return fmt.Errorf("saving session %s: %w", sess.CallRefID, err)
	}
	return nil
}

// Delete removes a session; called when a call reaches a terminal state
func (s *Store) Delete(ctx context.Context, callRef string) error {
	if err := s.kv.Delete(ctx, sessionKeyPrefix+callRef); err != nil {
		return fmt.Errorf("deleting session %s: %w", callRef, err)
	}
	return nil
}
