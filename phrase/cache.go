// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

// Package phrase is the content-addressed cache in front of speech
// synthesis. A phrase is identified by (speaker voice, fingerprint of the
// normalized text); once synthesized its URL is reusable indefinitely.
package phrase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Benrobo/nexusai-sub001/blob"
	"github.com/Benrobo/nexusai-sub001/kv"
	"github.com/Benrobo/nexusai-sub001/synth"
)

// Resolver maps (speaker, text) to playable audio URLs
type Resolver struct {
	kv    kv.Store
	blobs blob.Store
	synth synth.Synthesizer
	log   *zap.Logger
}

// NewResolver creates a phrase resolver
func NewResolver(store kv.Store, blobs blob.Store, synthesizer synth.Synthesizer, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{kv: store, blobs: blobs, synth: synthesizer, log: log}
}

// Fingerprint returns the stable content hash of a phrase text
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// Normalize collapses whitespace and case so trivially different spellings
// of the same prompt share one cache entry.
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func cacheKey(speakerID, fingerprint string) string {
	return "phrase:" + speakerID + ":" + fingerprint
}

// Resolve returns a playable URL for the phrase, synthesizing on cache
// miss. A hit never invokes the synthesizer. On miss the audio is
// uploaded under a deterministic object name and the URL cached without
// expiry; nothing is cached on failure, so the next request retries.
func (r *Resolver) Resolve(ctx context.Context, speakerID, text string) (string, error) {
	fp := Fingerprint(text)
	key := cacheKey(speakerID, fp)

	url, err := r.kv.Get(ctx, key)
	if err == nil {
		return url, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		// The cache entry is advisory; a flaky cache read degrades to a
		// miss rather than failing the turn.
		r.log.Warn("phrase cache read failed", zap.String("key", key), zap.Error(err))
	}

	res, err := r.synth.Synthesize(ctx, speakerID, text)
	if err != nil {
		return "", fmt.Errorf("resolving phrase %s: %w", fp[:12], err)
	}

	objectName := fmt.Sprintf("phrases/%s/%s.mp3", speakerID, fp)
	url, err = r.blobs.Put(ctx, objectName, res.Audio, res.ContentType)
	if err != nil {
		return "", fmt.Errorf("storing phrase %s: %w", fp[:12], err)
	}

	if err := r.kv.Set(ctx, key, url, 0); err != nil {
		// The blob exists and the URL is valid; a failed cache write only
		// costs a re-synthesis next time.
		r.log.Warn("phrase cache write failed", zap.String("key", key), zap.Error(err))
	}
	return url, nil
}
