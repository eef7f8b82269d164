package inbox

import (
	"context"

	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"
)

// Strict wraps an Inbox so that Add raises OnceOnlyViolation on a duplicate
// instead of silently succeeding, for callers that configured "throw" as
// their once-only policy (spec §7).
type Strict struct {
	inner Inbox
}

// NewStrict wraps inner with duplicate-raises-OnceOnlyViolation semantics.
func NewStrict(inner Inbox) *Strict {
	return &Strict{inner: inner}
}

func (s *Strict) Add(ctx context.Context, req requestpkg.Request, contextKey string, txn any) error {
	exists, err := s.inner.Exists(ctx, req.ID(), contextKey)
	if err != nil {
		return err
	}
	if exists {
		return errspkg.NewOnceOnlyViolation(req.ID())
	}
	return s.inner.Add(ctx, req, contextKey, txn)
}

func (s *Strict) Exists(ctx context.Context, requestID, contextKey string) (bool, error) {
	return s.inner.Exists(ctx, requestID, contextKey)
}

func (s *Strict) Get(ctx context.Context, requestID, contextKey string) (requestpkg.Request, error) {
	return s.inner.Get(ctx, requestID, contextKey)
}
