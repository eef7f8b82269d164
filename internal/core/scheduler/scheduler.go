// Package scheduler implements the backend-agnostic scheduling contract:
// accept a request plus a dispatch mode and a due time, return an opaque
// id, and at the due time invoke the processor's corresponding operation.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"
)

// Mode is the command-processor operation a scheduled firing invokes.
type Mode int

const (
	ModeSend Mode = iota
	ModePublish
	ModePost
)

func (m Mode) String() string {
	switch m {
	case ModeSend:
		return "send"
	case ModePublish:
		return "publish"
	case ModePost:
		return "post"
	default:
		return "unknown"
	}
}

// Job is one scheduled firing: the wrapped request, its dispatch mode, and
// when it's due. The worker hands due Jobs to a Fire callback (the
// processor's Fire method), keeping the scheduler oblivious to processor
// internals; FireSchedulerRequest (see fire.go) wraps a Job as a
// dispatchable request.
type Job struct {
	ID      string
	Request requestpkg.Request
	Mode    Mode
	Due     time.Time
	fired   bool
}

// Scheduler is the backend-agnostic contract from spec §4.5/§6. A backend
// only needs at-least-once firing and idempotent Cancel; the in-memory
// implementation here satisfies both trivially for tests and
// single-process deployments.
type Scheduler interface {
	Schedule(ctx context.Context, req requestpkg.Request, mode Mode, when time.Time) (string, error)
	Reschedule(ctx context.Context, id string, when time.Time) error
	Cancel(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Job, error)
	ListPending(ctx context.Context) ([]Job, error)
}

// Fire is invoked by the worker loop (see worker.go) once a job is due; it
// is the seam the command processor façade implements to actually run
// Send/Publish/Post for the wrapped request.
type Fire func(ctx context.Context, job Job) error

// InMemory is a reference Scheduler backed by a ticking worker goroutine.
// It is the scheduler backend used by tests and single-process
// deployments; durable backends (a database table, a delayed-queue broker)
// implement the same Scheduler interface.
type InMemory struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	nextID  func() string
}

// NewInMemory builds an empty in-memory scheduler. idGen generates opaque
// scheduler ids; the scheduler uses whatever it returns as-is.
func NewInMemory(idGen func() string) *InMemory {
	return &InMemory{jobs: make(map[string]*Job), nextID: idGen}
}

func (s *InMemory) Schedule(ctx context.Context, req requestpkg.Request, mode Mode, when time.Time) (string, error) {
	id := s.nextID()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = &Job{ID: id, Request: req, Mode: mode, Due: when}
	return id, nil
}

func (s *InMemory) Reschedule(ctx context.Context, id string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return errspkg.NewRequestNotFound(id)
	}
	if job.fired {
		return fmt.Errorf("dispatchflow: scheduler job %s already fired: %w", id, errspkg.NewRequestNotFound(id))
	}
	job.Due = when
	return nil
}

// Cancel removes a pending job. Cancelling a job that doesn't exist (or
// already fired/was already cancelled) is a no-op, per the scheduler's
// idempotent-cancel requirement.
func (s *InMemory) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *InMemory) Get(ctx context.Context, id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, errspkg.NewRequestNotFound(id)
	}
	return *job, nil
}

func (s *InMemory) ListPending(ctx context.Context) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if !job.fired {
			out = append(out, *job)
		}
	}
	return out, nil
}

// dueJobs returns (and marks fired) every job whose Due time has passed as
// of now, removing them from the pending set. Called by the worker loop.
func (s *InMemory) dueJobs(now time.Time) []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*Job
	for id, job := range s.jobs {
		if !job.fired && !job.Due.After(now) {
			job.fired = true
			due = append(due, job)
			delete(s.jobs, id)
		}
	}
	return due
}
