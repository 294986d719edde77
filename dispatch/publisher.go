package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Benrobo/nexusai-sub001/model"
)

// Publisher enqueues a background job for later delivery. Enqueueing is
// fire-and-forget from the caller's perspective; the queue owns delivery.
type Publisher interface {
	Publish(ctx context.Context, job model.BackgroundJob) error
}

// QueuePublisher publishes jobs to an Upstash-style HTTP message queue
// which delivers them back to the processing endpoint after the delay.
type QueuePublisher struct {
	client     *http.Client
	endpoint   string // queue API base, e.g. https://qstash.upstash.io
	token      string
	processURL string // public URL of the worker processing endpoint
}

// NewQueuePublisher creates a publisher for the given queue and target
func NewQueuePublisher(endpoint, token, processURL string) *QueuePublisher {
	return &QueuePublisher{
		client:     &http.Client{Timeout: 10 * time.Second},
		endpoint:   endpoint,
		token:      token,
		processURL: processURL,
	}
}

// Publish hands a job to the queue with its optional delay
func (p *QueuePublisher) Publish(ctx context.Context, job model.BackgroundJob) error {
	if job.ID == "" {
		job.ID = model.NewJobID()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.ID, err)
	}

	target := fmt.Sprintf("%s/v2/publish/%s", p.endpoint, p.processURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)
	if job.DelaySeconds > 0 {
		req.Header.Set("Upstash-Delay", fmt.Sprintf("%ds", job.DelaySeconds))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("publishing job %s: %w", job.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("queue returned %d for job %s: %s", resp.StatusCode, job.ID, string(msg))
	}
	return nil
}

// MockPublisher is a test double that records published jobs
type MockPublisher struct {
	mu   sync.Mutex
	jobs []model.BackgroundJob

	// PublishErr, when set, is returned by every Publish
	PublishErr error
}

// NewMockPublisher creates a new mock
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(_ context.Context, job model.BackgroundJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PublishErr != nil {
		return m.PublishErr
	}
	if job.ID == "" {
		job.ID = model.NewJobID()
	}
	m.jobs = append(m.jobs, job)
	return nil
}

// Jobs returns a copy of the recorded jobs
func (m *MockPublisher) Jobs() []model.BackgroundJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.BackgroundJob{}, m.jobs...)
}
