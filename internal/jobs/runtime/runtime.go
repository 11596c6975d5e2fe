package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
)

// Handler executes one attempt of a job. The returned bytes (if any) are
// stored as the run's result payload. Returning a permanent error stops the
// retry cycle immediately; any other error counts against the attempt budget.
type Handler interface {
	Run(ctx context.Context, job *types.JobRun) ([]byte, error)
}

type HandlerFunc func(ctx context.Context, job *types.JobRun) ([]byte, error)

func (f HandlerFunc) Run(ctx context.Context, job *types.JobRun) ([]byte, error) {
	return f(ctx, job)
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(jobType string, h Handler) error {
	jobType = strings.TrimSpace(jobType)
	if jobType == "" {
		return fmt.Errorf("runtime: empty job type")
	}
	if h == nil {
		return fmt.Errorf("runtime: nil handler for job_type=%s", jobType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[jobType]; exists {
		return fmt.Errorf("runtime: duplicate handler for job_type=%s", jobType)
	}
	r.handlers[jobType] = h
	return nil
}

func (r *Registry) MustRegister(jobType string, h Handler) {
	if err := r.Register(jobType, h); err != nil {
		panic(err)
	}
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[strings.TrimSpace(jobType)]
	return h, ok
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as non-retryable: the run fails terminally on this
// attempt regardless of how many attempts remain.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
