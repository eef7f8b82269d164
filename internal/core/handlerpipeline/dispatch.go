package handlerpipeline

import (
	"context"

	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"
)

// Dispatcher exposes the Send/Publish dispatch semantics over a Builder.
// Post is implemented one layer up, by the command processor, since it also
// needs the transform registry and the outbox — Dispatcher only knows about
// handler chains.
type Dispatcher struct {
	builder *Builder
}

// NewDispatcher wraps builder with Send/Publish dispatch semantics.
func NewDispatcher(builder *Builder) *Dispatcher {
	return &Dispatcher{builder: builder}
}

// Send requires exactly one registered handler chain for req's type and
// returns its result. A missing or ambiguous registration is a
// ConfigurationError.
func (d *Dispatcher) Send(ctx context.Context, req requestpkg.Request) (any, error) {
	requestType := requestpkg.TypeName(req)

	chain, err := d.builder.BuildSingleChain(requestType)
	if err != nil {
		return nil, err
	}
	return chain.Execute(ctx, req)
}

// Publish runs every registered handler chain for req's type independently:
// no chain observes another's output, and every chain runs even if an
// earlier one fails. Failures are collected into an AggregateError; Publish
// returns nil when there are zero registered handlers (Event/Document types
// may legitimately have none).
func (d *Dispatcher) Publish(ctx context.Context, req requestpkg.Request) error {
	requestType := requestpkg.TypeName(req)

	chains, err := d.builder.BuildChains(requestType)
	if err != nil {
		return err
	}

	var failures []error
	for _, chain := range chains {
		if _, err := chain.Execute(ctx, req); err != nil {
			failures = append(failures, err)
		}
	}

	if agg := errspkg.NewAggregateError(failures...); agg != nil {
		return agg
	}
	return nil
}
