// Package processor implements the command processor façade: the single
// entry point spec §4.4 describes, composing the handler pipeline
// dispatcher, the transform registry, the outbox-producer mediator, and
// the scheduler behind Send/Publish/Post/DepositPost/ClearOutbox and the
// scheduler hooks.
package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
	requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"
	"github.com/flowmesh/dispatchflow/internal/core/scheduler"
	"github.com/flowmesh/dispatchflow/internal/core/transform"
)

// Dispatcher is the narrow view of handlerpipeline.Dispatcher the
// processor needs; kept as an interface so tests can substitute a fake
// without pulling in the full handler pipeline builder.
type Dispatcher interface {
	Send(ctx context.Context, req requestpkg.Request) (any, error)
	Publish(ctx context.Context, req requestpkg.Request) error
}

// Mediator is the narrow view of mediator.Mediator the processor needs.
type Mediator interface {
	Deposit(ctx context.Context, msg messagepkg.Message, txn any) error
	Clear(ctx context.Context, messageID string) error
	ClearIDs(ctx context.Context, ids []string) error
	SweepOutstanding(ctx context.Context, threshold time.Time, limit int) (int, error)
}

// Config wires a Processor's dependencies.
type Config struct {
	Dispatcher Dispatcher
	Transforms *transform.Registry
	Mediator   Mediator
	Scheduler  scheduler.Scheduler
	// SchedulerWorker, if set, is started by Start and stopped by
	// Teardown. Durable scheduler backends that run their own polling
	// process outside this façade can leave this nil.
	SchedulerWorker *scheduler.Worker
	// Hooks, if set, are invoked around every Send and Publish call.
	Hooks JobHooks
}

// Processor is the command processor façade. It owns the shared service
// bus (mediator + producers, reached indirectly through Mediator) and
// exposes an explicit teardown lifecycle rather than the source's
// process-wide static state (spec §9).
type Processor struct {
	cfg Config

	mu         sync.Mutex
	started    bool
	workerDone chan struct{}
	workerStop context.CancelFunc
}

// New builds a Processor. Call Start before relying on scheduled firings;
// Send/Publish/Post/DepositPost/ClearOutbox work without Start.
func New(cfg Config) *Processor {
	return &Processor{cfg: cfg}
}

// Start launches the scheduler worker, if one was configured. Calling
// Start twice is a no-op.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.cfg.SchedulerWorker == nil {
		p.started = true
		return
	}

	workerCtx, cancel := context.WithCancel(ctx)
	p.workerStop = cancel
	p.workerDone = make(chan struct{})

	go func() {
		defer close(p.workerDone)
		p.cfg.SchedulerWorker.Run(workerCtx)
	}()
	p.started = true
}

// Teardown stops the scheduler worker (if running) and waits for it to
// exit. It is the façade's explicit, process-wide cleanup hook (spec §9),
// safe to call even if Start was never called.
func (p *Processor) Teardown() {
	p.mu.Lock()
	stop := p.workerStop
	done := p.workerDone
	p.mu.Unlock()

	if stop != nil {
		stop()
	}
	if done != nil {
		<-done
	}
}

// Send dispatches req to its single registered handler and returns the
// handler's result.
func (p *Processor) Send(ctx context.Context, req requestpkg.Request) (any, error) {
	var result any
	err := runHooks(ctx, p.cfg.Hooks, req, func() error {
		value, err := p.cfg.Dispatcher.Send(ctx, req)
		result = value
		return err
	})
	return result, err
}

// SendAsync dispatches req on a new goroutine and returns a channel that
// receives exactly one Result. This is the cooperative-dispatch form spec
// §4.4 calls out alongside the synchronous Send.
func (p *Processor) SendAsync(ctx context.Context, req requestpkg.Request) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		value, err := p.cfg.Dispatcher.Send(ctx, req)
		out <- Result{Value: value, Err: err}
		close(out)
	}()
	return out
}

// Result is the value SendAsync delivers once its goroutine completes.
type Result struct {
	Value any
	Err   error
}

// Publish fans req out to every registered handler and aggregates
// failures.
func (p *Processor) Publish(ctx context.Context, req requestpkg.Request) error {
	return runHooks(ctx, p.cfg.Hooks, req, func() error {
		return p.cfg.Dispatcher.Publish(ctx, req)
	})
}

// Post wraps req through the transform pipeline, deposits it in the
// outbox, and immediately triggers a clear attempt. A message is never
// silently lost: once Deposit succeeds the outbox row guarantees eventual
// dispatch even if this immediate Clear attempt fails (e.g. the producer's
// circuit is open) — a later ClearOutstandingFromOutbox sweep picks it up.
func (p *Processor) Post(ctx context.Context, req requestpkg.Request) error {
	messageID, err := p.depositPost(ctx, req, nil)
	if err != nil {
		return err
	}
	if err := p.cfg.Mediator.Clear(ctx, messageID); err != nil {
		return fmt.Errorf("dispatchflow: post %s deposited but not yet dispatched: %w", messageID, err)
	}
	return nil
}

// DepositPost stages req into the outbox within txn and returns its
// message id, without attempting to dispatch it. Callers that want the
// deposit to commit atomically with their own business-state write pass
// their transaction handle as txn.
func (p *Processor) DepositPost(ctx context.Context, req requestpkg.Request, txn any) (string, error) {
	return p.depositPost(ctx, req, txn)
}

func (p *Processor) depositPost(ctx context.Context, req requestpkg.Request, txn any) (string, error) {
	msg, err := p.cfg.Transforms.WrapRequest(ctx, req)
	if err != nil {
		return "", err
	}
	if err := p.cfg.Mediator.Deposit(ctx, msg, txn); err != nil {
		return "", err
	}
	return msg.Header.MessageID, nil
}

// ClearOutbox forces a dispatch attempt for each of the given outbox
// message ids.
func (p *Processor) ClearOutbox(ctx context.Context, messageIDs []string) error {
	return p.cfg.Mediator.ClearIDs(ctx, messageIDs)
}

// ClearOutstandingFromOutbox forces a dispatch attempt for every outbox
// entry still Outstanding and created at or before threshold.
func (p *Processor) ClearOutstandingFromOutbox(ctx context.Context, threshold time.Time) (int, error) {
	return p.cfg.Mediator.SweepOutstanding(ctx, threshold, 0)
}
