package mediator

import (
	"context"
	"errors"
	"testing"
	"time"

	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
	"github.com/flowmesh/dispatchflow/internal/core/outbox"
	"github.com/flowmesh/dispatchflow/internal/core/registry"
)

type stubProducer struct {
	failTimes int
	sent      []messagepkg.Message
}

func (p *stubProducer) Send(ctx context.Context, msg messagepkg.Message, delay time.Duration) (string, error) {
	if p.failTimes > 0 {
		p.failTimes--
		return "", errors.New("send failed")
	}
	p.sent = append(p.sent, msg)
	return "provider-id", nil
}

func (p *stubProducer) Capabilities() registry.Capabilities { return registry.Capabilities{} }

func newTestMediator(producer registry.Producer, routingKey string) (*Mediator, *outbox.InMemory) {
	store := outbox.NewInMemory()
	producers := registry.NewProducerRegistry()
	producers.Register(routingKey, producer)
	policies := registry.NewDefaultPolicyRegistry(registry.RetryConfig{MaxTries: 1}, registry.CircuitBreakerConfig{FailureThreshold: 100})

	m := New(Config{Outbox: store, Producers: producers, Policies: policies, PolicyName: registry.CircuitBreakerPolicy})
	return m, store
}

func TestMediator_DepositThenClearMarksDispatched(t *testing.T) {
	msg := messagepkg.New("orders.created", messagepkg.Event, messagepkg.Body{Bytes: []byte("{}")})
	producer := &stubProducer{}
	m, store := newTestMediator(producer, "orders.created")

	if err := m.Deposit(context.Background(), msg, nil); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	entry, err := store.Get(context.Background(), msg.Header.MessageID)
	if err != nil {
		t.Fatalf("Get before Clear: %v", err)
	}
	if entry.State != outbox.Outstanding {
		t.Fatalf("expected Outstanding before Clear, got %v", entry.State)
	}

	if err := m.Clear(context.Background(), msg.Header.MessageID); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	entry, err = store.Get(context.Background(), msg.Header.MessageID)
	if err != nil {
		t.Fatalf("Get after Clear: %v", err)
	}
	if entry.State != outbox.Dispatched {
		t.Fatalf("expected Dispatched after Clear, got %v", entry.State)
	}
	if len(producer.sent) != 1 {
		t.Fatalf("expected exactly one producer send, got %d", len(producer.sent))
	}
}

func TestMediator_ClearFailureLeavesEntryOutstandingAndRecordsAttempt(t *testing.T) {
	msg := messagepkg.New("orders.created", messagepkg.Event, messagepkg.Body{Bytes: []byte("{}")})
	producer := &stubProducer{failTimes: 100}
	m, store := newTestMediator(producer, "orders.created")

	if err := m.Deposit(context.Background(), msg, nil); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := m.Clear(context.Background(), msg.Header.MessageID); err == nil {
		t.Fatal("expected Clear to fail when producer always errors")
	}

	entry, err := store.Get(context.Background(), msg.Header.MessageID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.State != outbox.Outstanding {
		t.Fatalf("expected Outstanding after failed Clear, got %v", entry.State)
	}
	if entry.Attempts != 1 {
		t.Fatalf("expected one recorded attempt, got %d", entry.Attempts)
	}
}

func TestMediator_SweepOutstandingClearsEligibleEntries(t *testing.T) {
	producer := &stubProducer{}
	m, store := newTestMediator(producer, "orders.created")

	msg := messagepkg.New("orders.created", messagepkg.Event, messagepkg.Body{Bytes: []byte("{}")})
	if err := m.Deposit(context.Background(), msg, nil); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	cleared, err := m.SweepOutstanding(context.Background(), time.Now().Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("SweepOutstanding: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared entry, got %d", cleared)
	}

	entry, err := store.Get(context.Background(), msg.Header.MessageID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.State != outbox.Dispatched {
		t.Fatalf("expected Dispatched after sweep, got %v", entry.State)
	}
}
