// Package synth wraps the external text-to-speech provider. Synthesis is
// a pure function of (voice, text); the package holds no state beyond the
// HTTP client.
package synth

import (
	"context"
	"errors"
)

// ErrSynthesisFailed wraps any provider-side synthesis failure
var ErrSynthesisFailed = errors.New("synth: synthesis failed")

// Result is the synthesized audio plus its MIME type
type Result struct {
	Audio       []byte
	ContentType string
}

// Synthesizer converts text to audio
type Synthesizer interface {
	Synthesize(ctx context.Context, voiceID, text string) (*Result, error)
}
