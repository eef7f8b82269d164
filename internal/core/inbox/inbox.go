// Package inbox implements the once-only delivery store: a durable record
// of handled request ids keyed by an additional context key, so the same
// physical store can back several independent consumers without their
// idempotency records colliding.
package inbox

import (
	"context"
	"sync"

	requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"
)

// entryKey scopes a request id by the caller-supplied context, e.g. a
// consumer group or handler name, so two independent subscribers can each
// maintain their own once-only record for the same request id.
type entryKey struct {
	requestID  string
	contextKey string
}

// Inbox is the once-only contract from spec §6. Add is idempotent: calling
// it twice for the same (request id, context key) pair leaves a single
// entry and never errors (spec §8 invariant 8), matching "succeed-no-op" in
// the OnceOnlyViolation policy note rather than raising by default.
type Inbox interface {
	Add(ctx context.Context, req requestpkg.Request, contextKey string, txn any) error
	Exists(ctx context.Context, requestID, contextKey string) (bool, error)
	Get(ctx context.Context, requestID, contextKey string) (requestpkg.Request, error)
}

// InMemory is a reference Inbox for tests and single-process deployments.
type InMemory struct {
	mu      sync.Mutex
	entries map[entryKey]requestpkg.Request
}

// NewInMemory builds an empty in-memory inbox.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[entryKey]requestpkg.Request)}
}

func (i *InMemory) Add(ctx context.Context, req requestpkg.Request, contextKey string, txn any) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	key := entryKey{requestID: req.ID(), contextKey: contextKey}
	if _, exists := i.entries[key]; exists {
		return nil
	}
	i.entries[key] = req
	return nil
}

func (i *InMemory) Exists(ctx context.Context, requestID, contextKey string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	_, ok := i.entries[entryKey{requestID: requestID, contextKey: contextKey}]
	return ok, nil
}

func (i *InMemory) Get(ctx context.Context, requestID, contextKey string) (requestpkg.Request, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	req, ok := i.entries[entryKey{requestID: requestID, contextKey: contextKey}]
	if !ok {
		return nil, notFound(requestID)
	}
	return req, nil
}
