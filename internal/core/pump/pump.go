package pump

import (
	"context"
	"errors"
	"fmt"
	"time"

	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
	requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"
)

// Unwrapper resolves a message's routing key to the request type the
// transform registry should unwrap it as, then runs the unwrap pipeline.
type Unwrapper interface {
	RequestTypeForRoutingKey(routingKey string) (string, error)
	UnwrapMessage(ctx context.Context, requestType string, msg messagepkg.Message) (requestpkg.Request, error)
}

// Validator enforces the pump's validate-message-type rule ahead of
// dispatch (spec §4.6): COMMAND must resolve to Send-style registration,
// EVENT/DOCUMENT to Publish-style.
type Validator interface {
	ValidateForMessageType(requestType string, msgType messagepkg.Type) error
}

// Dispatcher runs the handler chains for an unwrapped request.
type Dispatcher interface {
	Send(ctx context.Context, req requestpkg.Request) (any, error)
	Publish(ctx context.Context, req requestpkg.Request) error
}

// ExitReason names why a pump loop returned.
type ExitReason int

const (
	ExitUnknown ExitReason = iota
	ExitQuit
	ExitUnacceptableLimit
	ExitChannelDisposed
	ExitFatalConfiguration
)

func (r ExitReason) String() string {
	switch r {
	case ExitQuit:
		return "quit"
	case ExitUnacceptableLimit:
		return "unacceptable_limit"
	case ExitChannelDisposed:
		return "channel_disposed"
	case ExitFatalConfiguration:
		return "fatal_configuration"
	default:
		return "unknown"
	}
}

// Config wires one pump's dependencies and tunables.
type Config struct {
	Channel    Channel
	Unwrapper  Unwrapper
	Validator  Validator
	Dispatcher Dispatcher

	ReceiveTimeout      time.Duration
	ChannelFailureDelay time.Duration
	EmptyChannelDelay   time.Duration
	UnacceptableLimit   int
	RequeueLimit        int
	RequeueDelay        time.Duration
	DiscardOnOverflow   bool

	// OnUnhandledError is called for errors the state machine classifies
	// as "other" (logged then acked), since the pump itself carries no
	// logger dependency — callers that want the teacher-style structured
	// logging wire their ServiceLogger in through this hook.
	OnUnhandledError func(err error, msg messagepkg.Message)

	// Metrics, if set, records poison-message and requeue counters per
	// routing key. Nil is valid: a pump with no metrics configured simply
	// doesn't record any.
	Metrics *PoisonMetrics
}

func (c Config) withDefaults() Config {
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = 5 * time.Second
	}
	if c.ChannelFailureDelay <= 0 {
		c.ChannelFailureDelay = time.Second
	}
	if c.EmptyChannelDelay <= 0 {
		c.EmptyChannelDelay = 100 * time.Millisecond
	}
	if c.UnacceptableLimit <= 0 {
		c.UnacceptableLimit = 100
	}
	if c.RequeueLimit <= 0 {
		c.RequeueLimit = 3
	}
	return c
}

// Pump runs the per-iteration state machine from spec §4.6. Reactor and
// Proactor both embed one; they differ only in how the Run loop is driven
// (blocking the caller's goroutine vs handed off to a managed one), not in
// iteration semantics.
type Pump struct {
	cfg               Config
	unacceptableCount int
}

// New builds a Pump ready to Run.
func New(cfg Config) *Pump {
	return &Pump{cfg: cfg.withDefaults()}
}

// Run executes the receive/unwrap/dispatch loop until an exit condition is
// reached, disposing the channel on every exit path.
func (p *Pump) Run(ctx context.Context) (ExitReason, error) {
	for {
		if p.unacceptableCount >= p.cfg.UnacceptableLimit {
			p.disposeChannel(ctx)
			return ExitUnacceptableLimit, nil
		}

		select {
		case <-ctx.Done():
			p.disposeChannel(ctx)
			return ExitChannelDisposed, ctx.Err()
		default:
		}

		msg, err := p.cfg.Channel.Receive(ctx, p.cfg.ReceiveTimeout)
		if err != nil {
			var channelErr *errspkg.ChannelFailure
			if errors.As(err, &channelErr) {
				time.Sleep(p.cfg.ChannelFailureDelay)
				continue
			}
			p.disposeChannel(ctx)
			return ExitChannelDisposed, fmt.Errorf("dispatchflow: fatal channel receive error: %w", err)
		}

		exit, done := p.handleMessage(ctx, msg)
		if done {
			return exit, nil
		}
	}
}

// handleMessage runs one iteration's dispatch-classification state machine.
// done reports whether the pump should exit with exit as its reason.
func (p *Pump) handleMessage(ctx context.Context, msg messagepkg.Message) (exit ExitReason, done bool) {
	switch msg.Header.MessageType {
	case messagepkg.None:
		time.Sleep(p.cfg.EmptyChannelDelay)
		return ExitUnknown, false

	case messagepkg.Unacceptable:
		p.unacceptableCount++
		p.cfg.Metrics.recordPoisonIfConfigured(msg)
		p.ack(ctx, msg)
		return ExitUnknown, false

	case messagepkg.Quit:
		p.disposeChannel(ctx)
		return ExitQuit, true

	case messagepkg.Command, messagepkg.Event, messagepkg.Document:
		return p.dispatchMessage(ctx, msg)

	default:
		p.unacceptableCount++
		p.cfg.Metrics.recordPoisonIfConfigured(msg)
		p.ack(ctx, msg)
		return ExitUnknown, false
	}
}

func (p *Pump) dispatchMessage(ctx context.Context, msg messagepkg.Message) (ExitReason, bool) {
	requestType, err := p.cfg.Unwrapper.RequestTypeForRoutingKey(msg.Header.RoutingKey)
	if err == nil {
		err = p.cfg.Validator.ValidateForMessageType(requestType, msg.Header.MessageType)
	}

	var req requestpkg.Request
	if err == nil {
		req, err = p.cfg.Unwrapper.UnwrapMessage(ctx, requestType, msg)
	}

	if err == nil {
		err = p.dispatch(ctx, msg.Header.MessageType, req)
	}

	return p.classifyAndAct(ctx, msg, err)
}

func (p *Pump) dispatch(ctx context.Context, msgType messagepkg.Type, req requestpkg.Request) error {
	if msgType == messagepkg.Command {
		_, err := p.cfg.Dispatcher.Send(ctx, req)
		return err
	}
	return p.cfg.Dispatcher.Publish(ctx, req)
}

// classifyAndAct implements the catch-chain from spec §4.6, including
// unwrapping one level of AggregateError to classify by inner-error kind.
func (p *Pump) classifyAndAct(ctx context.Context, msg messagepkg.Message, err error) (ExitReason, bool) {
	if err == nil {
		p.ack(ctx, msg)
		return ExitUnknown, false
	}

	var agg *errspkg.AggregateError
	if errors.As(err, &agg) {
		for _, inner := range agg.Errors() {
			if exit, done := p.classifyAndAct(ctx, msg, inner); done {
				return exit, done
			}
		}
		// No inner error forced an exit; treat the aggregate itself as
		// logged-and-acked, matching the "other" branch.
		p.logUnhandled(err, msg)
		p.ack(ctx, msg)
		return ExitUnknown, false
	}

	var cfgErr *errspkg.ConfigurationError
	if errors.As(err, &cfgErr) {
		p.reject(ctx, msg)
		p.disposeChannel(ctx)
		return ExitFatalConfiguration, true
	}

	var deferErr *errspkg.DeferMessageAction
	if errors.As(err, &deferErr) {
		p.requeueOrDrop(ctx, msg, deferErr.Delay)
		return ExitUnknown, false
	}

	var mapErr *errspkg.MessageMappingError
	if errors.As(err, &mapErr) {
		p.unacceptableCount++
		p.cfg.Metrics.recordPoisonIfConfigured(msg)
		p.ack(ctx, msg)
		return ExitUnknown, false
	}

	p.logUnhandled(err, msg)
	p.ack(ctx, msg)
	return ExitUnknown, false
}

// requeueOrDrop increments handled_count and either requeues (carrying
// delay when requested) or rejects the message once handled_count reaches
// requeue_limit and overflow-discard is enabled.
func (p *Pump) requeueOrDrop(ctx context.Context, msg messagepkg.Message, delay time.Duration) {
	bumped := msg.IncrementHandledCount()

	if bumped.Header.HandledCount >= p.cfg.RequeueLimit && p.cfg.DiscardOnOverflow {
		p.reject(ctx, bumped)
		return
	}

	requeueDelay := delay
	if requeueDelay <= 0 {
		requeueDelay = p.cfg.RequeueDelay
	}

	accepted, err := p.cfg.Channel.Requeue(ctx, bumped, requeueDelay)
	if err != nil || !accepted {
		// Broker has no native requeue support (or the requeue itself
		// failed): fall back to reject so the broker's own redelivery or
		// DLQ policy takes over.
		p.reject(ctx, bumped)
		return
	}
	p.cfg.Metrics.recordRequeueIfConfigured(bumped)
}

func (p *Pump) ack(ctx context.Context, msg messagepkg.Message) {
	_ = p.cfg.Channel.Acknowledge(ctx, msg)
}

func (p *Pump) reject(ctx context.Context, msg messagepkg.Message) {
	_ = p.cfg.Channel.Reject(ctx, msg)
}

func (p *Pump) disposeChannel(ctx context.Context) {
	_ = p.cfg.Channel.Dispose(ctx)
}

func (p *Pump) logUnhandled(err error, msg messagepkg.Message) {
	if p.cfg.OnUnhandledError != nil {
		p.cfg.OnUnhandledError(err, msg)
	}
}

// UnacceptableCount reports the running poison-message tally, exposed for
// pump introspection and tests (scenario S8).
func (p *Pump) UnacceptableCount() int { return p.unacceptableCount }
