package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
)

func newTestMessage(id string) messagepkg.Message {
	m := messagepkg.New("orders.created", messagepkg.Event, messagepkg.Body{Bytes: []byte("{}")})
	m.Header.MessageID = id
	return m
}

func TestInMemory_AddThenGetRoundTrips(t *testing.T) {
	o := NewInMemory()
	msg := newTestMessage("A")

	if err := o.Add(context.Background(), msg, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	entry, err := o.Get(context.Background(), "A")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.State != Outstanding {
		t.Fatalf("expected Outstanding, got %v", entry.State)
	}
}

func TestInMemory_MarkDispatchedIsConditional(t *testing.T) {
	o := NewInMemory()
	msg := newTestMessage("B")
	if err := o.Add(context.Background(), msg, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := o.MarkDispatched(context.Background(), "B", time.Now()); err != nil {
		t.Fatalf("first MarkDispatched: %v", err)
	}

	err := o.MarkDispatched(context.Background(), "B", time.Now())
	if err == nil {
		t.Fatal("expected second MarkDispatched to fail, entry already dispatched")
	}
}

func TestInMemory_MarkDispatchedMissingIsRequestNotFound(t *testing.T) {
	o := NewInMemory()

	err := o.MarkDispatched(context.Background(), "missing", time.Now())

	var notFoundErr *errspkg.RequestNotFound
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("expected RequestNotFound, got %v", err)
	}
}

func TestInMemory_OutstandingReturnsOldestFirstUpToLimit(t *testing.T) {
	o := NewInMemory()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"C", "D", "E"} {
		msg := newTestMessage(id)
		if err := o.Add(context.Background(), msg, nil); err != nil {
			t.Fatalf("Add %s: %v", id, err)
		}
		o.mu.Lock()
		e := o.entries[id]
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		o.entries[id] = e
		o.mu.Unlock()
	}

	entries, err := o.Outstanding(context.Background(), time.Now(), 2)
	if err != nil {
		t.Fatalf("Outstanding: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].MessageID != "C" || entries[1].MessageID != "D" {
		t.Fatalf("expected oldest-first C,D got %s,%s", entries[0].MessageID, entries[1].MessageID)
	}
}

func TestInMemory_RecordAttemptAccumulates(t *testing.T) {
	o := NewInMemory()
	msg := newTestMessage("F")
	if err := o.Add(context.Background(), msg, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := o.RecordAttempt(context.Background(), "F", errors.New("boom")); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	if err := o.RecordAttempt(context.Background(), "F", nil); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	entry, err := o.Get(context.Background(), "F")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", entry.Attempts)
	}
	if entry.LastError != "boom" {
		t.Fatalf("expected lingering last error from first failed attempt, got %q", entry.LastError)
	}
}
