package outbox

import (
	"context"
	"sort"
	"sync"
	"time"

	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
)

// InMemory is a reference Outbox for tests and single-process deployments.
// It never requires a transaction handle.
type InMemory struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewInMemory builds an empty in-memory outbox.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]Entry)}
}

func (o *InMemory) RequiresTransaction() bool { return false }

func (o *InMemory) Add(ctx context.Context, msg messagepkg.Message, txn any) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.entries[msg.Header.MessageID] = Entry{
		MessageID: msg.Header.MessageID,
		Message:   msg,
		State:     Outstanding,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (o *InMemory) Get(ctx context.Context, messageID string) (Entry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.entries[messageID]
	if !ok {
		return Entry{}, notFound(messageID)
	}
	return e, nil
}

func (o *InMemory) Outstanding(ctx context.Context, since time.Time, limit int) ([]Entry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []Entry
	for _, e := range o.entries {
		if e.State == Outstanding && !e.CreatedAt.After(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (o *InMemory) MarkDispatched(ctx context.Context, messageID string, at time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.entries[messageID]
	if !ok {
		return notFound(messageID)
	}
	if e.State == Dispatched {
		return alreadyDispatched(messageID)
	}
	e.State = Dispatched
	e.DispatchedAt = at
	o.entries[messageID] = e
	return nil
}

func (o *InMemory) RecordAttempt(ctx context.Context, messageID string, lastErr error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.entries[messageID]
	if !ok {
		return notFound(messageID)
	}
	e.Attempts++
	if lastErr != nil {
		e.LastError = lastErr.Error()
	}
	o.entries[messageID] = e
	return nil
}
