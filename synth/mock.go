package synth

import (
	"context"
	"sync"
)

// MockSynthesizer is a test double that records synthesis calls
type MockSynthesizer struct {
	mu    sync.Mutex
	calls []MockSynthCall

	// ResponseFunc allows tests to control responses; when nil a small
	// fixed audio payload is returned.
	ResponseFunc func(voiceID, text string) (*Result, error)
}

// MockSynthCall records one synthesis request
type MockSynthCall struct {
	VoiceID string
	Text    string
}

// NewMockSynthesizer creates a new mock
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

func (m *MockSynthesizer) Synthesize(_ context.Context, voiceID, text string) (*Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockSynthCall{VoiceID: voiceID, Text: text})
	fn := m.ResponseFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(voiceID, text)
	}
	return &Result{Audio: []byte("mock-audio:" + text), ContentType: "audio/mpeg"}, nil
}

// Calls returns a copy of the recorded calls
func (m *MockSynthesizer) Calls() []MockSynthCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockSynthCall{}, m.calls...)
}

// CallCount reports how many synthesis calls were made
func (m *MockSynthesizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
