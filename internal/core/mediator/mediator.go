// Package mediator implements the outbox-producer mediator: the component
// that deposits messages into the outbox within the caller's transaction
// and later clears them by resolving a producer and sending under a
// resilience policy, transitioning Outstanding -> Dispatched exactly once.
package mediator

import (
	"context"
	"fmt"
	"time"

	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
	"github.com/flowmesh/dispatchflow/internal/core/outbox"
	"github.com/flowmesh/dispatchflow/internal/core/registry"
)

// Mediator ties an Outbox to a ProducerRegistry and a named resilience
// Policy. Deposit is called from inside the caller's business transaction;
// Clear and Sweep run independently, typically from a background goroutine
// or an explicit ClearOutbox call on the command processor façade.
type Mediator struct {
	store     outbox.Outbox
	producers *registry.ProducerRegistry
	policies  *registry.PolicyRegistry
	// policyName is the named policy (well-known or user-defined) every
	// Clear call executes the producer send under.
	policyName string
}

// Config wires a Mediator's dependencies.
type Config struct {
	Outbox     outbox.Outbox
	Producers  *registry.ProducerRegistry
	Policies   *registry.PolicyRegistry
	PolicyName string
}

// New builds a Mediator. PolicyName defaults to registry.CircuitBreakerPolicy
// when left empty, since every Clear call must run under a breaker per
// spec §9 even if the caller doesn't care about retry tuning.
func New(cfg Config) *Mediator {
	policyName := cfg.PolicyName
	if policyName == "" {
		policyName = registry.CircuitBreakerPolicy
	}
	return &Mediator{
		store:      cfg.Outbox,
		producers:  cfg.Producers,
		policies:   cfg.Policies,
		policyName: policyName,
	}
}

// Deposit stages msg as Outstanding within txn, the caller's transaction
// handle. It never sends to the broker: that's Clear's job, run after the
// caller's transaction commits.
func (m *Mediator) Deposit(ctx context.Context, msg messagepkg.Message, txn any) error {
	return m.store.Add(ctx, msg, txn)
}

// Clear resolves the producer bound to the entry's routing key and sends
// it under the mediator's resilience policy. A successful send marks the
// entry Dispatched; a circuit-open or other send failure leaves it
// Outstanding and records the attempt for observability, per spec §8
// invariant 4 and scenario S9.
func (m *Mediator) Clear(ctx context.Context, messageID string) error {
	entry, err := m.store.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if entry.State == outbox.Dispatched {
		return nil
	}

	producer, err := m.producers.Resolve(entry.Message.Header.RoutingKey)
	if err != nil {
		return err
	}

	policy, err := m.policies.Get(m.policyName)
	if err != nil {
		return err
	}

	sendErr := policy.Execute(ctx, func(ctx context.Context) error {
		_, err := producer.Send(ctx, entry.Message, entry.Message.Header.Delayed)
		return err
	})

	if sendErr != nil {
		if recordErr := m.store.RecordAttempt(ctx, messageID, sendErr); recordErr != nil {
			return recordErr
		}
		return sendErr
	}

	return m.store.MarkDispatched(ctx, messageID, time.Now().UTC())
}

// ClearIDs clears each of ids in turn, collecting failures into an
// AggregateError so one producer's circuit-open doesn't prevent the rest
// from clearing.
func (m *Mediator) ClearIDs(ctx context.Context, ids []string) error {
	var failures []error
	for _, id := range ids {
		if err := m.Clear(ctx, id); err != nil {
			failures = append(failures, fmt.Errorf("clear %s: %w", id, err))
		}
	}
	return errspkg.NewAggregateError(failures...).AsError()
}

// SweepOutstanding clears every entry still Outstanding and created at or
// before threshold, oldest first, up to limit entries per call. It is the
// background half of the mediator: a process that calls SweepOutstanding
// on a timer picks up entries whose first Clear attempt failed (e.g. the
// breaker was open) without requiring the original caller to retry.
func (m *Mediator) SweepOutstanding(ctx context.Context, threshold time.Time, limit int) (int, error) {
	entries, err := m.store.Outstanding(ctx, threshold, limit)
	if err != nil {
		return 0, err
	}

	cleared := 0
	var failures []error
	for _, entry := range entries {
		if err := m.Clear(ctx, entry.MessageID); err != nil {
			failures = append(failures, fmt.Errorf("sweep %s: %w", entry.MessageID, err))
			continue
		}
		cleared++
	}
	return cleared, errspkg.NewAggregateError(failures...).AsError()
}
