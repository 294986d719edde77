// Package directory resolves a called phone number to the assistant
// configuration answering it. The engine consumes this read-only at call
// start; account management itself lives elsewhere.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Benrobo/nexusai-sub001/model"
)

// ErrNumberNotFound means no agent is registered for the phone number
var ErrNumberNotFound = errors.New("directory: phone number not found")

// AgentProfile describes the assistant configuration behind a number
type AgentProfile struct {
	AgentID          string          `json:"agent_id"`
	AgentType        model.AgentType `json:"agent_type"`
	OwnerEmail       string          `json:"owner_email"`
	Linked           bool            `json:"linked"`
	HasKnowledgeBase bool            `json:"has_knowledge_base"`
	Active           bool            `json:"active"`
}

// Lookup resolves phone numbers to agent profiles
type Lookup interface {
	ByPhoneNumber(ctx context.Context, number string) (*AgentProfile, error)
}

// HTTPLookup queries the account service over HTTP
type HTTPLookup struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewHTTPLookup creates a lookup against the account service
func NewHTTPLookup(baseURL, apiKey string) *HTTPLookup {
	return &HTTPLookup{
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func (l *HTTPLookup) ByPhoneNumber(ctx context.Context, number string) (*AgentProfile, error) {
	endpoint := fmt.Sprintf("%s/internal/agents?phone=%s", l.baseURL, url.QueryEscape(number))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating lookup request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", number, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNumberNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("account service returned %d for %s", resp.StatusCode, number)
	}

	var profile AgentProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decoding profile for %s: %w", number, err)
	}
	return &profile, nil
}

// MockLookup is a test double backed by a map
type MockLookup struct {
	mu       sync.Mutex
	profiles map[string]*AgentProfile

	// LookupErr, when set, is returned by every lookup
	LookupErr error
}

// NewMockLookup creates an empty mock
func NewMockLookup() *MockLookup {
	return &MockLookup{profiles: make(map[string]*AgentProfile)}
}

// Add registers a profile for a number
func (m *MockLookup) Add(number string, profile *AgentProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[number] = profile
}

func (m *MockLookup) ByPhoneNumber(_ context.Context, number string) (*AgentProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	profile, ok := m.profiles[number]
	if !ok {
		return nil, ErrNumberNotFound
	}
	return profile, nil
}
