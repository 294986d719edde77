// Package dispatch queues delayed side-effecting jobs and runs them on
// the worker side, with a bounded synchronous retry helper for
// operations that must finish before answering their caller.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Benrobo/nexusai-sub001/model"
)

// HandlerFunc executes one delivered job payload
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Dispatcher routes delivered jobs to their registered handlers
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[model.JobType]HandlerFunc
	log      *zap.Logger
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher(log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		handlers: make(map[model.JobType]HandlerFunc),
		log:      log,
	}
}

// Register binds a job type to its handler; re-registering replaces it
func (d *Dispatcher) Register(jobType model.JobType, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[jobType] = fn
}

// Process executes one delivered job. Unknown job types are an error so
// a misrouted delivery is visible at the queue rather than dropped.
func (d *Dispatcher) Process(ctx context.Context, job model.BackgroundJob) error {
	d.mu.RLock()
	fn, ok := d.handlers[job.Type]
	d.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no handler registered for job type %q", job.Type)
	}

	d.log.Info("processing job",
		zap.String("job_id", job.ID),
		zap.String("job_type", string(job.Type)),
	)
	if err := fn(ctx, job.Payload); err != nil {
		d.log.Error("job failed",
			zap.String("job_id", job.ID),
			zap.String("job_type", string(job.Type)),
			zap.Error(err),
		)
		return fmt.Errorf("processing %s job %s: %w", job.Type, job.ID, err)
	}
	return nil
}
