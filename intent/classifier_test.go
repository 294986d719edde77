// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

package intent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Benrobo/nexusai-sub001/model"
)

// fakeCompleter scripts chat completion responses per call
type fakeCompleter struct {
	calls     int
	responses []fakeResponse
}

type fakeResponse struct {
	intent string
	err    error
	// noToolCall simulates a model reply without a function call
	noToolCall bool
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	r := f.responses[idx]

	if r.err != nil {
		return openai.ChatCompletionResponse{}, r.err
	}
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
	if !r.noToolCall {
		msg.ToolCalls = []openai.ToolCall{
			{
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      recordIntentTool,
					Arguments: fmt.Sprintf(`{"intent":%q}`, r.intent),
				},
			},
		}
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: msg}},
	}, nil
}

func TestClassifyEmptyInputSkipsModel(t *testing.T) {
	fake := &fakeCompleter{responses: []fakeResponse{{intent: "REQUEST"}}}
	c := NewClassifier(fake)

	for _, utterance := range []string{"", "   ", "\n\t"} {
		got, err := c.Classify(context.Background(), utterance, model.Vocabulary())
		if err != nil {
			t.Fatalf("Classify(%q): %v", utterance, err)
		}
		if got != model.IntentUnknown {
			t.Errorf("Classify(%q) = %q, want unknown", utterance, got)
		}
	}
	if fake.calls != 0 {
		t.Errorf("model called %d times for empty input, want 0", fake.calls)
	}
}

func TestClassifyValidIntent(t *testing.T) {
	fake := &fakeCompleter{responses: []fakeResponse{{intent: "REQUEST"}}}
	c := NewClassifier(fake)

	got, err := c.Classify(context.Background(), "I need help with my order", model.Vocabulary())
	if err != nil {
		t.Fatal(err)
	}
	if got != model.IntentRequest {
		t.Errorf("got %q, want REQUEST", got)
	}
	if fake.calls != 1 {
		t.Errorf("model called %d times, want 1", fake.calls)
	}
}

func TestClassifyRejectsOutOfVocabularyValue(t *testing.T) {
	// Model hallucinates a value that is not a legal output
	fake := &fakeCompleter{responses: []fakeResponse{{intent: "BUY_STOCKS"}}}
	c := NewClassifier(fake)

	got, err := c.Classify(context.Background(), "buy me some stocks", model.Vocabulary())
	if !errors.Is(err, ErrUnrecognizedIntent) {
		t.Fatalf("expected ErrUnrecognizedIntent, got %v", err)
	}
	if got != model.IntentUnknown {
		t.Errorf("got %q, want unknown", got)
	}
	// Out-of-vocabulary output is a model answer, not a transport
	// failure; it must not be retried.
	if fake.calls != 1 {
		t.Errorf("model called %d times, want 1", fake.calls)
	}
}

func TestClassifyRetriesProviderErrorOnce(t *testing.T) {
	fake := &fakeCompleter{responses: []fakeResponse{
		{err: errors.New("upstream timeout")},
		{intent: "GOODBYE"},
	}}
	c := NewClassifier(fake)

	got, err := c.Classify(context.Background(), "bye now", model.Vocabulary())
	if err != nil {
		t.Fatal(err)
	}
	if got != model.IntentGoodbye {
		t.Errorf("got %q, want GOODBYE", got)
	}
	if fake.calls != 2 {
		t.Errorf("model called %d times, want 2", fake.calls)
	}
}

func TestClassifyFailsAfterSecondProviderError(t *testing.T) {
	fake := &fakeCompleter{responses: []fakeResponse{
		{err: errors.New("upstream timeout")},
	}}
	c := NewClassifier(fake)

	_, err := c.Classify(context.Background(), "hello", model.Vocabulary())
	if !errors.Is(err, ErrClassificationFailed) {
		t.Fatalf("expected ErrClassificationFailed, got %v", err)
	}
	if fake.calls != 2 {
		t.Errorf("model called %d times, want 2", fake.calls)
	}
}

func TestClassifyNoToolCall(t *testing.T) {
	fake := &fakeCompleter{responses: []fakeResponse{{noToolCall: true}}}
	c := NewClassifier(fake)

	_, err := c.Classify(context.Background(), "hello", model.Vocabulary())
	if !errors.Is(err, ErrClassificationFailed) {
		t.Fatalf("expected ErrClassificationFailed, got %v", err)
	}
}
