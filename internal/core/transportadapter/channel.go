package transportadapter

import (
	"context"
	"errors"
	"sync"
	"time"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"

	"github.com/flowmesh/dispatchflow/internal/core/dlqmetrics"
	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
	"github.com/flowmesh/dispatchflow/transport"
)

// Channel adapts a watermill Subscriber bound to one topic into the pump's
// Channel contract. It subscribes once, for the lifetime of the Channel,
// and correlates each delivered core Message back to the watermill message
// it came from so Acknowledge/Reject/Requeue can call Ack/Nack on it.
type Channel struct {
	topic      string
	subscriber wmmessage.Subscriber
	publisher  wmmessage.Publisher
	caps       transport.Capabilities
	dlq        *dlqmetrics.Metrics

	deliveries <-chan *wmmessage.Message
	local      chan *wmmessage.Message

	mu      sync.Mutex
	pending map[string]*wmmessage.Message
}

// NewChannel subscribes to topic over t.Subscriber and returns a pump
// Channel backed by it. ctx governs the subscription's lifetime, not any
// single Receive call; Dispose should still be called to close it.
func NewChannel(ctx context.Context, topic string, t transport.Transport, caps transport.Capabilities) (*Channel, error) {
	deliveries, err := t.Subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, errspkg.NewChannelFailure("subscribe", err)
	}
	return &Channel{
		topic:      topic,
		subscriber: t.Subscriber,
		publisher:  t.Publisher,
		caps:       caps,
		deliveries: deliveries,
		local:      make(chan *wmmessage.Message, 16),
		pending:    make(map[string]*wmmessage.Message),
	}, nil
}

// WithDLQMetrics attaches a dead-letter metrics collector, recorded on every
// Reject while the backing transport's capabilities report no native DLQ
// support (RequiresDLQEmulation). Returns c for chaining at construction
// time.
func (c *Channel) WithDLQMetrics(m *dlqmetrics.Metrics) *Channel {
	c.dlq = m
	return c
}

// Receive waits up to timeout for the next delivery, preferring locally
// injected messages (EnqueueLocal) over broker deliveries when both are
// ready, and returns message.NewNone() if the timeout elapses first.
func (c *Channel) Receive(ctx context.Context, timeout time.Duration) (messagepkg.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case wm, ok := <-c.local:
		if !ok {
			return messagepkg.Message{}, errspkg.NewChannelFailure("receive", errors.New("channel disposed"))
		}
		return c.track(wm)
	default:
	}

	select {
	case <-ctx.Done():
		return messagepkg.Message{}, ctx.Err()
	case wm, ok := <-c.local:
		if !ok {
			return messagepkg.Message{}, errspkg.NewChannelFailure("receive", errors.New("channel disposed"))
		}
		return c.track(wm)
	case wm, ok := <-c.deliveries:
		if !ok {
			return messagepkg.Message{}, errspkg.NewChannelFailure("receive", errors.New("subscription closed"))
		}
		return c.track(wm)
	case <-timer.C:
		return messagepkg.NewNone(), nil
	}
}

func (c *Channel) track(wm *wmmessage.Message) (messagepkg.Message, error) {
	msg, err := FromWatermill(c.topic, wm)
	if err != nil {
		return messagepkg.Message{}, errspkg.NewMessageMappingError(c.topic, err)
	}
	c.mu.Lock()
	c.pending[msg.Header.MessageID] = wm
	c.mu.Unlock()
	return msg, nil
}

func (c *Channel) take(msg messagepkg.Message) (*wmmessage.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	wm, ok := c.pending[msg.Header.MessageID]
	if ok {
		delete(c.pending, msg.Header.MessageID)
	}
	return wm, ok
}

// Acknowledge acks the underlying watermill message. A message with no
// tracked watermill delivery (e.g. the QUIT sentinel) is a silent no-op.
func (c *Channel) Acknowledge(ctx context.Context, msg messagepkg.Message) error {
	wm, ok := c.take(msg)
	if !ok {
		return nil
	}
	wm.Ack()
	return nil
}

// Reject nacks the underlying watermill message, the only "do not redeliver
// the way it was going to be" signal watermill subscribers expose. When the
// backing transport has no native dead-letter support, the reject is also
// recorded against the attached DLQMetrics, since this transport's own
// broker-side DLQ won't account for it.
func (c *Channel) Reject(ctx context.Context, msg messagepkg.Message) error {
	wm, ok := c.take(msg)
	if !ok {
		return nil
	}
	if c.dlq != nil && c.caps.RequiresDLQEmulation() {
		age := time.Since(msg.Header.Timestamp)
		c.dlq.RecordMessageToDLQ(c.topic, msg.Header.RoutingKey, msg.Header.HandledCount, age)
	}
	wm.Nack()
	return nil
}

// Requeue reports whether the backing transport can honor a redelivery
// request. When the transport's capabilities don't advertise Nack support,
// Requeue does nothing and returns (false, nil) so the pump falls back to
// Reject per spec §4.6. When delay is requested and the transport natively
// supports delay, the original delivery is acked and a fresh copy is
// republished with the delay instead, since watermill's Nack carries no
// delay parameter of its own.
func (c *Channel) Requeue(ctx context.Context, msg messagepkg.Message, delay time.Duration) (bool, error) {
	if !c.caps.SupportsNack {
		return false, nil
	}
	wm, ok := c.take(msg)
	if !ok {
		return false, nil
	}

	if delay > 0 && c.caps.SupportsDelay {
		if delayed, ok := c.publisher.(transport.DelayedPublisher); ok {
			redelivered := wm.Copy()
			if err := delayed.PublishWithDelay(c.topic, delay.Milliseconds(), redelivered); err != nil {
				return false, errspkg.NewChannelFailure("requeue_publish_with_delay", err)
			}
			wm.Ack()
			return true, nil
		}
	}

	wm.Nack()
	return true, nil
}

// EnqueueLocal injects msg directly into this channel's delivery path
// without a broker round trip, used to hand a pump the QUIT sentinel or a
// synthetic test message.
func (c *Channel) EnqueueLocal(ctx context.Context, msg messagepkg.Message) error {
	wm, err := ToWatermill(msg)
	if err != nil {
		return errspkg.NewMessageMappingError(msg.Header.RoutingKey, err)
	}
	select {
	case c.local <- wm:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispose closes the local injection channel and the backing subscriber.
func (c *Channel) Dispose(ctx context.Context) error {
	close(c.local)
	return c.subscriber.Close()
}
