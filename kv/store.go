// Package kv abstracts the key-value cache shared across webhook
// invocations. It is the only cross-invocation mutable resource in the
// system, so everything it exposes is a single atomic round trip: no
// read-then-write sequences live here.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist or has expired
var ErrNotFound = errors.New("kv: key not found")

// Store is the generic cache collaborator
type Store interface {
	// Get returns the value for key, or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value under key only if the key is absent, returning
	// whether the write happened. Used for advisory locks.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Incr atomically increments the integer at key by one and returns
	// the new value. The ttl applies only when the increment creates
	// the key; later increments leave the existing expiry alone.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Expire refreshes the ttl of an existing key
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Delete removes a key; deleting an absent key is not an error
	Delete(ctx context.Context, key string) error
}
