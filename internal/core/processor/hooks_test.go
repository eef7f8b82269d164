package processor

import (
	"context"
	"errors"
	"testing"

	requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"
)

func TestJobHooks_SendFiresStartAndDone(t *testing.T) {
	var events []string
	hooks := JobHooks{
		OnJobStart: func(ctx JobContext) { events = append(events, "start:"+ctx.RequestType) },
		OnJobDone:  func(ctx JobContext) { events = append(events, "done:"+ctx.RequestType) },
		OnJobError: func(ctx JobContext, err error) { events = append(events, "error:"+err.Error()) },
	}

	p := New(Config{
		Dispatcher: &stubDispatcher{sendResult: "ok"},
		Hooks:      hooks,
	})

	req := &stubRequest{Base: requestpkg.NewBase(requestpkg.Command), Payload: "x"}
	result, err := p.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected result ok, got %v", result)
	}

	if len(events) != 2 || events[0] != "start:*processor.stubRequest" || events[1] != "done:*processor.stubRequest" {
		t.Fatalf("unexpected hook sequence: %v", events)
	}
}

func TestJobHooks_SendFiresErrorOnFailure(t *testing.T) {
	var events []string
	hooks := JobHooks{
		OnJobStart: func(ctx JobContext) { events = append(events, "start") },
		OnJobDone:  func(ctx JobContext) { events = append(events, "done") },
		OnJobError: func(ctx JobContext, err error) { events = append(events, "error:"+err.Error()) },
	}

	boom := errors.New("boom")
	p := New(Config{
		Dispatcher: &stubDispatcher{sendErr: boom},
		Hooks:      hooks,
	})

	req := &stubRequest{Base: requestpkg.NewBase(requestpkg.Command), Payload: "x"}
	_, err := p.Send(context.Background(), req)
	if err != boom {
		t.Fatalf("expected boom, got %v", err)
	}

	if len(events) != 2 || events[0] != "start" || events[1] != "error:boom" {
		t.Fatalf("unexpected hook sequence: %v", events)
	}
}

func TestJobHooks_PublishFiresHooks(t *testing.T) {
	var started, done bool
	hooks := JobHooks{
		OnJobStart: func(ctx JobContext) { started = true },
		OnJobDone:  func(ctx JobContext) { done = true },
	}

	p := New(Config{
		Dispatcher: &stubDispatcher{},
		Hooks:      hooks,
	})

	req := &stubRequest{Base: requestpkg.NewBase(requestpkg.Event), Payload: "x"}
	if err := p.Publish(context.Background(), req); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !started || !done {
		t.Fatalf("expected both start and done to fire, got started=%v done=%v", started, done)
	}
}

func TestJobHooks_Merge(t *testing.T) {
	var order []string
	a := JobHooks{OnJobStart: func(ctx JobContext) { order = append(order, "a") }}
	b := JobHooks{OnJobStart: func(ctx JobContext) { order = append(order, "b") }}
	merged := a.Merge(b)

	merged.OnJobStart(JobContext{})
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected a then b, got %v", order)
	}
}

func TestNilJobHooks_AreNoop(t *testing.T) {
	p := New(Config{Dispatcher: &stubDispatcher{sendResult: "ok"}})
	req := &stubRequest{Base: requestpkg.NewBase(requestpkg.Command), Payload: "x"}
	if _, err := p.Send(context.Background(), req); err != nil {
		t.Fatalf("Send: %v", err)
	}
}
