package handlerpipeline

import (
	"context"
	"errors"
	"testing"

	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"
)

type fakeRequest struct {
	requestpkg.Base
}

type funcHandlerFactory struct {
	fn  HandlerFunc
	err error
}

func (f *funcHandlerFactory) New() (HandlerFunc, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.fn, nil
}

type recordingMiddleware struct {
	name string
	log  *[]string
	err  error
}

func (m *recordingMiddleware) Name() string { return m.name }

func (m *recordingMiddleware) Handle(ctx context.Context, req requestpkg.Request) error {
	*m.log = append(*m.log, m.name)
	return m.err
}

type funcMiddlewareFactory struct {
	name string
	log  *[]string
	err  error
}

func (f *funcMiddlewareFactory) New() (Middleware, error) {
	return &recordingMiddleware{name: f.name, log: f.log}, nil
}

func reg(name string, step int, timing Timing, log *[]string) MiddlewareRegistration {
	return MiddlewareRegistration{Name: name, Step: step, Timing: timing, Factory: &funcMiddlewareFactory{name: name, log: log}}
}

func TestBuildChains_OrdersBeforeAscendingAfterDescending(t *testing.T) {
	var log []string
	b := NewBuilder()
	err := b.Register("order.Request", HandlerRegistration{
		HandlerType: "order.Handler",
		Factory: &funcHandlerFactory{fn: func(ctx context.Context, req requestpkg.Request) (any, error) {
			log = append(log, "handler")
			return "ok", nil
		}},
		Middleware: []MiddlewareRegistration{
			reg("before-20", 20, Before, &log),
			reg("before-10", 10, Before, &log),
			reg("after-30", 30, After, &log),
			reg("after-40", 40, After, &log),
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	chain, err := b.BuildSingleChain("order.Request")
	if err != nil {
		t.Fatalf("BuildSingleChain: %v", err)
	}

	result, err := chain.Execute(context.Background(), &fakeRequest{Base: requestpkg.NewBase(requestpkg.Command)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected handler result, got %v", result)
	}

	want := []string{"before-10", "before-20", "handler", "after-40", "after-30"}
	if !equalStrings(log, want) {
		t.Fatalf("expected order %v, got %v", want, log)
	}
}

func TestBuildSingleChain_DuplicateStepIsConfigurationError(t *testing.T) {
	var log []string
	b := NewBuilder()
	err := b.Register("dup.Request", HandlerRegistration{
		Factory: &funcHandlerFactory{fn: noopHandler},
		Middleware: []MiddlewareRegistration{
			reg("a", 10, Before, &log),
			reg("b", 10, Before, &log),
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err = b.BuildSingleChain("dup.Request")
	var cfgErr *errspkg.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestBuildSingleChain_NoHandlersIsConfigurationError(t *testing.T) {
	b := NewBuilder()
	_, err := b.BuildSingleChain("missing.Request")

	var cfgErr *errspkg.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestBuildSingleChain_MultipleHandlersIsConfigurationError(t *testing.T) {
	b := NewBuilder()
	_ = b.Register("fanout.Request", HandlerRegistration{Factory: &funcHandlerFactory{fn: noopHandler}})
	_ = b.Register("fanout.Request", HandlerRegistration{Factory: &funcHandlerFactory{fn: noopHandler}})

	_, err := b.BuildSingleChain("fanout.Request")
	var cfgErr *errspkg.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestDispatcher_SendReturnsHandlerResult(t *testing.T) {
	b := NewBuilder()
	_ = b.Register(requestpkg.TypeName(&fakeRequest{}), HandlerRegistration{
		Factory: &funcHandlerFactory{fn: func(ctx context.Context, req requestpkg.Request) (any, error) {
			return "hello", nil
		}},
	})
	d := NewDispatcher(b)

	result, err := d.Send(context.Background(), &fakeRequest{Base: requestpkg.NewBase(requestpkg.Command)})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result != "hello" {
		t.Fatalf("expected hello, got %v", result)
	}
}

func TestDispatcher_PublishAggregatesFailuresButRunsAllChains(t *testing.T) {
	var ran []string
	b := NewBuilder()
	_ = b.Register(requestpkg.TypeName(&fakeRequest{}), HandlerRegistration{
		HandlerType: "first",
		Factory: &funcHandlerFactory{fn: func(ctx context.Context, req requestpkg.Request) (any, error) {
			ran = append(ran, "first")
			return nil, errors.New("first failed")
		}},
	})
	_ = b.Register(requestpkg.TypeName(&fakeRequest{}), HandlerRegistration{
		HandlerType: "second",
		Factory: &funcHandlerFactory{fn: func(ctx context.Context, req requestpkg.Request) (any, error) {
			ran = append(ran, "second")
			return nil, nil
		}},
	})
	d := NewDispatcher(b)

	err := d.Publish(context.Background(), &fakeRequest{Base: requestpkg.NewBase(requestpkg.Event)})
	if err == nil {
		t.Fatal("expected aggregate error from first handler's failure")
	}

	var agg *errspkg.AggregateError
	if !errors.As(err, &agg) {
		t.Fatalf("expected AggregateError, got %v", err)
	}
	if len(agg.Errors()) != 1 {
		t.Fatalf("expected exactly one inner failure, got %d", len(agg.Errors()))
	}
	if !equalStrings(ran, []string{"first", "second"}) {
		t.Fatalf("expected both chains to run regardless of failure, got %v", ran)
	}
}

func TestDispatcher_PublishNoHandlersIsNilError(t *testing.T) {
	b := NewBuilder()
	d := NewDispatcher(b)

	err := d.Publish(context.Background(), &fakeRequest{Base: requestpkg.NewBase(requestpkg.Event)})
	if err != nil {
		t.Fatalf("expected nil error for zero registered handlers, got %v", err)
	}
}

func noopHandler(ctx context.Context, req requestpkg.Request) (any, error) { return nil, nil }

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
