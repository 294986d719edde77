// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

package phrase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Benrobo/nexusai-sub001/blob"
	"github.com/Benrobo/nexusai-sub001/kv"
	"github.com/Benrobo/nexusai-sub001/phrase"
	"github.com/Benrobo/nexusai-sub001/synth"
)

func newResolver() (*phrase.Resolver, *kv.MemoryStore, *blob.MemoryStore, *synth.MockSynthesizer) {
	store := kv.NewMemoryStore(nil)
	blobs := blob.NewMemoryStore()
	mock := synth.NewMockSynthesizer()
	return phrase.NewResolver(store, blobs, mock, nil), store, blobs, mock
}

func TestResolveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r, _, blobs, mock := newResolver()

	first, err := r.Resolve(ctx, "voice-1", "Hello, how can I help?")
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Resolve(ctx, "voice-1", "Hello, how can I help?")
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Errorf("urls differ: %q vs %q", first, second)
	}
	if mock.CallCount() != 1 {
		t.Errorf("synthesizer called %d times, want 1 (second call must be a cache hit)", mock.CallCount())
	}
	if blobs.Len() != 1 {
		t.Errorf("expected 1 blob, got %d", blobs.Len())
	}
}

func TestResolveNormalizesText(t *testing.T) {
	ctx := context.Background()
	r, _, _, mock := newResolver()

	if _, err := r.Resolve(ctx, "voice-1", "Hello   there"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve(ctx, "voice-1", "  hello THERE "); err != nil {
		t.Fatal(err)
	}

	if mock.CallCount() != 1 {
		t.Errorf("equivalent texts should share one entry; synthesizer called %d times", mock.CallCount())
	}
}

func TestResolveDistinctSpeakers(t *testing.T) {
	ctx := context.Background()
	r, _, _, mock := newResolver()

	if _, err := r.Resolve(ctx, "voice-1", "hello"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve(ctx, "voice-2", "hello"); err != nil {
		t.Fatal(err)
	}

	if mock.CallCount() != 2 {
		t.Errorf("distinct speakers must not share entries; synthesizer called %d times, want 2", mock.CallCount())
	}
}

func TestResolveSynthesisFailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	r, _, _, mock := newResolver()

	fail := true
	mock.ResponseFunc = func(voiceID, text string) (*synth.Result, error) {
		if fail {
			return nil, synth.ErrSynthesisFailed
		}
		return &synth.Result{Audio: []byte("ok"), ContentType: "audio/mpeg"}, nil
	}

	if _, err := r.Resolve(ctx, "voice-1", "hello"); !errors.Is(err, synth.ErrSynthesisFailed) {
		t.Fatalf("expected ErrSynthesisFailed, got %v", err)
	}

	// The failed attempt must not poison the cache: a later request
	// retries synthesis and succeeds.
	fail = false
	url, err := r.Resolve(ctx, "voice-1", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if url == "" {
		t.Error("expected non-empty url after recovery")
	}
	if mock.CallCount() != 2 {
		t.Errorf("synthesizer called %d times, want 2", mock.CallCount())
	}
}

func TestResolveBlobFailurePropagates(t *testing.T) {
	ctx := context.Background()
	r, store, blobs, _ := newResolver()

	blobs.PutErr = errors.New("bucket unavailable")
	if _, err := r.Resolve(ctx, "voice-1", "hello"); err == nil {
		t.Fatal("expected error when blob upload fails")
	}
	if store.Len() != 0 {
		t.Error("cache must not be written when the blob upload fails")
	}
}

func TestFingerprintStability(t *testing.T) {
	a := phrase.Fingerprint("Hello there")
	b := phrase.Fingerprint("  hello   THERE ")
	if a != b {
		t.Errorf("normalized texts should share a fingerprint: %s vs %s", a, b)
	}
	if phrase.Fingerprint("goodbye") == a {
		t.Error("distinct texts must not collide")
	}
}
