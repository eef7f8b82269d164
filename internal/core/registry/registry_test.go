package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
)

type fakeHandlerCounter struct {
	counts map[string]int
}

func (f *fakeHandlerCounter) HandlerCount(requestType string) int { return f.counts[requestType] }

func TestSubscriberRegistry_MultiplicityBuckets(t *testing.T) {
	reg := NewSubscriberRegistry(&fakeHandlerCounter{counts: map[string]int{"one": 1, "many": 3}})

	if got := reg.MultiplicityFor("one"); got != One {
		t.Fatalf("expected One, got %v", got)
	}
	if got := reg.MultiplicityFor("many"); got != Many {
		t.Fatalf("expected Many, got %v", got)
	}
	if got := reg.MultiplicityFor("none"); got != Unregistered {
		t.Fatalf("expected Unregistered, got %v", got)
	}
}

func TestSubscriberRegistry_CommandRequiresExactlyOne(t *testing.T) {
	reg := NewSubscriberRegistry(&fakeHandlerCounter{counts: map[string]int{"cmd": 2}})

	err := reg.ValidateForMessageType("cmd", messagepkg.Command)

	var cfgErr *errspkg.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for multi-handler command, got %v", err)
	}
}

func TestSubscriberRegistry_EventAllowsZeroOrMore(t *testing.T) {
	reg := NewSubscriberRegistry(&fakeHandlerCounter{counts: map[string]int{}})

	if err := reg.ValidateForMessageType("evt", messagepkg.Event); err != nil {
		t.Fatalf("expected zero handlers to be valid for Event, got %v", err)
	}
}

type fakeProducer struct {
	sent []messagepkg.Message
}

func (p *fakeProducer) Send(ctx context.Context, msg messagepkg.Message, delay time.Duration) (string, error) {
	p.sent = append(p.sent, msg)
	return "provider-id-1", nil
}

func (p *fakeProducer) Capabilities() Capabilities { return Capabilities{} }

func TestProducerRegistry_ResolveMissingIsConfigurationError(t *testing.T) {
	reg := NewProducerRegistry()

	_, err := reg.Resolve("orders.created")

	var cfgErr *errspkg.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestProducerRegistry_ResolveReturnsRegisteredProducer(t *testing.T) {
	reg := NewProducerRegistry()
	producer := &fakeProducer{}
	reg.Register("orders.created", producer)

	resolved, err := reg.Resolve("orders.created")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved != producer {
		t.Fatal("expected the registered producer instance back")
	}
}

func TestPolicyRegistry_GetMissingIsConfigurationError(t *testing.T) {
	reg := NewPolicyRegistry()

	_, err := reg.Get(RetryPolicy)

	var cfgErr *errspkg.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestPolicyRegistry_DefaultRegistersWellKnownNames(t *testing.T) {
	reg := NewDefaultPolicyRegistry(RetryConfig{MaxTries: 2}, CircuitBreakerConfig{})

	for _, name := range []string{RetryPolicy, RetryPolicyAsync, CircuitBreakerPolicy, CircuitBreakerAsync} {
		if _, err := reg.Get(name); err != nil {
			t.Fatalf("expected %q to be registered, got %v", name, err)
		}
	}
}

func TestPolicy_ExecuteSucceedsWithoutRetryWhenFirstAttemptSucceeds(t *testing.T) {
	reg := NewDefaultPolicyRegistry(RetryConfig{MaxTries: 3}, CircuitBreakerConfig{})
	policy, err := reg.Get(RetryPolicy)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	calls := 0
	err = policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one call, got %d", calls)
	}
}
