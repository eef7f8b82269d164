// Package pump implements the message pump: the Reactor (blocking) and
// Proactor (cooperative) loops that receive from a Channel, unwrap and
// dispatch each message, and manage poison-pill / requeue bookkeeping.
package pump

import (
	"context"
	"time"

	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
)

// Channel is the broker consumer contract from spec §6. Receive returns
// message.NewNone() (never nil) when the timeout elapses without a
// delivery; callers distinguish "nothing arrived" from "channel closed" by
// checking the error instead of expecting a sentinel for closure.
type Channel interface {
	Receive(ctx context.Context, timeout time.Duration) (messagepkg.Message, error)
	Acknowledge(ctx context.Context, msg messagepkg.Message) error
	Reject(ctx context.Context, msg messagepkg.Message) error
	// Requeue reports whether the broker accepted the requeue. A false
	// result with a nil error means the broker has no native requeue and
	// the pump must fall back to reject (spec §4.6 requeue policy).
	Requeue(ctx context.Context, msg messagepkg.Message, delay time.Duration) (bool, error)
	// EnqueueLocal injects msg directly into the channel's delivery path
	// without a round trip to the broker, used by tests to inject QUIT or
	// synthetic messages.
	EnqueueLocal(ctx context.Context, msg messagepkg.Message) error
	Dispose(ctx context.Context) error
}
