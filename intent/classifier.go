// Package intent maps free-text caller utterances onto the fixed intent
// vocabulary using an external function-calling model. The model's output
// is never trusted as type-safe: anything outside the allowed vocabulary
// is a classification failure, not a value.
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Benrobo/nexusai-sub001/model"
)

var (
	// ErrUnrecognizedIntent means the model answered outside the vocabulary
	ErrUnrecognizedIntent = errors.New("intent: unrecognized intent")
	// ErrClassificationFailed wraps provider errors and timeouts
	ErrClassificationFailed = errors.New("intent: classification failed")
)

const recordIntentTool = "record_intent"

// ChatCompleter is the slice of the OpenAI client the classifier uses
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Classifier resolves utterances to intents
type Classifier struct {
	client  ChatCompleter
	model   string
	timeout time.Duration
}

// ClassifierOption configures the classifier
type ClassifierOption func(*Classifier)

// WithModel selects the completion model
func WithModel(m string) ClassifierOption {
	return func(c *Classifier) {
		c.model = m
	}
}

// WithTimeout bounds each classification call
func WithTimeout(d time.Duration) ClassifierOption {
	return func(c *Classifier) {
		c.timeout = d
	}
}

// NewClassifier creates a classifier on the given completion client
func NewClassifier(client ChatCompleter, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		client:  client,
		model:   openai.GPT4oMini,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify resolves one utterance against the allowed vocabulary.
// Empty or whitespace-only input returns IntentUnknown without calling
// the model. A provider failure is retried once before giving up.
func (c *Classifier) Classify(ctx context.Context, utterance string, allowed []model.Intent) (model.Intent, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return model.IntentUnknown, nil
	}
	if len(allowed) == 0 {
		return model.IntentUnknown, fmt.Errorf("%w: empty vocabulary", ErrClassificationFailed)
	}

	in, err := c.classifyOnce(ctx, utterance, allowed)
	if err != nil && !errors.Is(err, ErrUnrecognizedIntent) {
		in, err = c.classifyOnce(ctx, utterance, allowed)
	}
	return in, err
}

func (c *Classifier) classifyOnce(ctx context.Context, utterance string, allowed []model.Intent) (model.Intent, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vocabulary := make([]string, len(allowed))
	for i, in := range allowed {
		vocabulary[i] = string(in)
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You classify a phone caller's utterance into exactly one intent. " +
					"Always call the " + recordIntentTool + " function with one of the allowed values.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: utterance,
			},
		},
		Tools: []openai.Tool{
			{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        recordIntentTool,
					Description: "Record the caller's intent for this turn",
					Parameters: map[string]any{
						"type": "object",
						"properties": map[string]any{
							"intent": map[string]any{
								"type": "string",
								"enum": vocabulary,
							},
						},
						"required": []string{"intent"},
					},
				},
			},
		},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: recordIntentTool},
		},
	}

	resp, err := c.client.CreateChatCompletion(callCtx, req)
	if err != nil {
		return model.IntentUnknown, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return model.IntentUnknown, fmt.Errorf("%w: no choices returned", ErrClassificationFailed)
	}

	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return model.IntentUnknown, fmt.Errorf("%w: model did not call %s", ErrClassificationFailed, recordIntentTool)
	}

	var args struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(calls[0].Function.Arguments), &args); err != nil {
		return model.IntentUnknown, fmt.Errorf("%w: decoding arguments: %v", ErrClassificationFailed, err)
	}

	got := model.Intent(args.Intent)
	for _, in := range allowed {
		if got == in {
			return got, nil
		}
	}
	return model.IntentUnknown, fmt.Errorf("%w: %q not in vocabulary", ErrUnrecognizedIntent, args.Intent)
}
