package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultElevenLabsBaseURL = "https://api.elevenlabs.io"

// ElevenLabsClient synthesizes speech through the ElevenLabs REST API
type ElevenLabsClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	modelID string
}

// ElevenLabsOption configures the client
type ElevenLabsOption func(*ElevenLabsClient)

// WithBaseURL overrides the API endpoint (tests point this at a stub)
func WithBaseURL(baseURL string) ElevenLabsOption {
	return func(c *ElevenLabsClient) {
		c.baseURL = baseURL
	}
}

// WithModelID selects the synthesis model
func WithModelID(modelID string) ElevenLabsOption {
	return func(c *ElevenLabsClient) {
		c.modelID = modelID
	}
}

// WithTimeout bounds each synthesis call. A hung synthesis call would
// otherwise hang a live phone call.
func WithTimeout(timeout time.Duration) ElevenLabsOption {
	return func(c *ElevenLabsClient) {
		c.client.Timeout = timeout
	}
}

// NewElevenLabsClient creates a synthesizer backed by ElevenLabs
func NewElevenLabsClient(apiKey string, opts ...ElevenLabsOption) *ElevenLabsClient {
	c := &ElevenLabsClient{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultElevenLabsBaseURL,
		apiKey:  apiKey,
		modelID: "eleven_multilingual_v2",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize renders text as MP3 audio in the given voice
func (c *ElevenLabsClient) Synthesize(ctx context.Context, voiceID, text string) (*Result, error) {
	payload, err := json.Marshal(synthesizeRequest{Text: text, ModelID: c.modelID})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", ErrSynthesisFailed, err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrSynthesisFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: provider returned %d: %s", ErrSynthesisFailed, resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading audio: %v", ErrSynthesisFailed, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: provider returned empty audio", ErrSynthesisFailed)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &Result{Audio: audio, ContentType: contentType}, nil
}
