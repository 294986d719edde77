package kv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Benrobo/nexusai-sub001/kv"
)

func TestMemoryStoreSetGet(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore(kv.NewManualClock(time.Time{}))

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, "k", "v", 0); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if got != "v" {
		t.Errorf("got %q, want %q", got, "v")
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	clock := kv.NewManualClock(time.Time{})
	store := kv.NewMemoryStore(clock)

	if err := store.Set(ctx, "k", "v", 10*time.Second); err != nil {
		t.Fatal(err)
	}

	clock.Advance(9 * time.Second)
	if _, err := store.Get(ctx, "k"); err != nil {
		t.Fatalf("key expired early: %v", err)
	}

	clock.Advance(2 * time.Second)
	if _, err := store.Get(ctx, "k"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestMemoryStoreExpireRefresh(t *testing.T) {
	ctx := context.Background()
	clock := kv.NewManualClock(time.Time{})
	store := kv.NewMemoryStore(clock)

	if err := store.Set(ctx, "k", "v", 10*time.Second); err != nil {
		t.Fatal(err)
	}
	clock.Advance(8 * time.Second)
	if err := store.Expire(ctx, "k", 10*time.Second); err != nil {
		t.Fatal(err)
	}
	clock.Advance(8 * time.Second)
	if _, err := store.Get(ctx, "k"); err != nil {
		t.Fatalf("refreshed key expired: %v", err)
	}

	if err := store.Expire(ctx, "missing", time.Second); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}
}

func TestMemoryStoreSetNX(t *testing.T) {
	ctx := context.Background()
	clock := kv.NewManualClock(time.Time{})
	store := kv.NewMemoryStore(clock)

	ok, err := store.SetNX(ctx, "lock", "a", 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("first SetNX: ok=%v err=%v", ok, err)
	}

	ok, err = store.SetNX(ctx, "lock", "b", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second SetNX should not win while key is live")
	}

	// Lock window lapses, key becomes free again
	clock.Advance(6 * time.Second)
	ok, err = store.SetNX(ctx, "lock", "c", 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("SetNX after expiry: ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore(nil)

	if err := store.Set(ctx, "k", "v", 0); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("deleting absent key should not error: %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStoreIncr(t *testing.T) {
	ctx := context.Background()
	clock := kv.NewManualClock(time.Time{})
	store := kv.NewMemoryStore(clock)

	for want := int64(1); want <= 3; want++ {
		n, err := store.Incr(ctx, "counter", 10*time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Fatalf("Incr = %d, want %d", n, want)
		}
	}

	// the window is anchored at the first increment, not refreshed
	clock.Advance(9 * time.Second)
	if n, err := store.Incr(ctx, "counter", 10*time.Second); err != nil || n != 4 {
		t.Fatalf("Incr = %d, %v, want 4 within the window", n, err)
	}

	clock.Advance(2 * time.Second)
	if n, err := store.Incr(ctx, "counter", 10*time.Second); err != nil || n != 1 {
		t.Fatalf("Incr = %d, %v, want a fresh counter after expiry", n, err)
	}
}

func TestMemoryStoreIncrRejectsNonInteger(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore(nil)

	if err := store.Set(ctx, "k", "not a number", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Incr(ctx, "k", 0); err == nil {
		t.Fatal("expected an error incrementing a non-integer value")
	}
}
