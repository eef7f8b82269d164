// Package handlerpipeline builds and executes the middleware+handler chains
// dispatched by Send, Publish, and Post, grounded on the teacher runtime's
// named, builder-registered MiddlewareRegistration shape adapted to the
// distilled source's explicit step_index/timing ordering.
package handlerpipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"
)

// Timing places a middleware relative to the target handler.
type Timing int

const (
	Before Timing = iota
	After
)

// HandlerFunc is the business-logic step at the center of a chain. Its
// return value is the chain's result, surfaced to Send callers and ignored
// by Publish/Post.
type HandlerFunc func(ctx context.Context, req requestpkg.Request) (any, error)

// Middleware runs before or after the target handler for cross-cutting
// concerns (validation, idempotency checks, enrichment). Unlike the
// teacher's watermill.HandlerMiddleware decorator, a Middleware here does
// not wrap "next" — BEFORE/AFTER placement is expressed through
// MiddlewareRegistration.Timing instead, so ordering stays a flat,
// declarative property the builder can validate.
type Middleware interface {
	Name() string
	Handle(ctx context.Context, req requestpkg.Request) error
}

// MiddlewareFactory instantiates a fresh Middleware per chain build, since
// pipelines are per-request and middleware may hold per-call state.
type MiddlewareFactory interface {
	New() (Middleware, error)
}

// HandlerFactory instantiates the target HandlerFunc for a registration.
type HandlerFactory interface {
	New() (HandlerFunc, error)
}

// MiddlewareRegistration declares one middleware's position within a
// handler's chain.
type MiddlewareRegistration struct {
	Name    string
	Step    int
	Timing  Timing
	Factory MiddlewareFactory
}

// HandlerRegistration declares one handler chain for a request type: the
// target handler factory plus its ordered middleware. Registering more than
// one HandlerRegistration for the same request type is legal for
// Event/Document types dispatched with Publish; Send requires exactly one.
type HandlerRegistration struct {
	HandlerType string
	Factory     HandlerFactory
	Middleware  []MiddlewareRegistration
}

// description is the validated, ordered chain shape the Builder caches per
// registration — the "description" the spec calls out as cacheable,
// distinct from the per-call Middleware/HandlerFunc instances themselves.
type description struct {
	handlerType string
	factory     HandlerFactory
	before      []MiddlewareRegistration // ascending by Step, ties by declaration order
	after       []MiddlewareRegistration // descending by Step, ties by declaration order
}

// Builder looks up the handler registrations for a request type and
// produces ready-to-execute Chains. It caches the validated chain
// description; it does not cache handler or middleware instances, since
// those may be stateful per call.
type Builder struct {
	mu            sync.RWMutex
	registrations map[string][]HandlerRegistration
	descriptions  map[string][]*description
}

// NewBuilder constructs an empty handler pipeline builder.
func NewBuilder() *Builder {
	return &Builder{
		registrations: make(map[string][]HandlerRegistration),
		descriptions:  make(map[string][]*description),
	}
}

// Register declares reg as a handler chain for requestType, appended after
// any previously registered chains for that type.
func (b *Builder) Register(requestType string, reg HandlerRegistration) error {
	if reg.Factory == nil {
		return errspkg.NewConfigurationError(fmt.Sprintf("handler registration for %q requires a factory", requestType), nil)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.registrations[requestType] = append(b.registrations[requestType], reg)
	delete(b.descriptions, requestType)
	return nil
}

// HandlerCount reports how many handler chains are registered for
// requestType. registry.SubscriberRegistry uses it to classify a request
// type as unregistered, single-handler or multi-handler.
func (b *Builder) HandlerCount(requestType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.registrations[requestType])
}

func describe(requestType string, reg HandlerRegistration) (*description, error) {
	var before, after []MiddlewareRegistration
	for _, m := range reg.Middleware {
		switch m.Timing {
		case Before:
			before = append(before, m)
		case After:
			after = append(after, m)
		}
	}

	if err := checkDuplicateSteps(requestType, before); err != nil {
		return nil, err
	}
	if err := checkDuplicateSteps(requestType, after); err != nil {
		return nil, err
	}

	sort.SliceStable(before, func(i, j int) bool { return before[i].Step < before[j].Step })
	sort.SliceStable(after, func(i, j int) bool { return after[i].Step > after[j].Step })

	return &description{
		handlerType: reg.HandlerType,
		factory:     reg.Factory,
		before:      before,
		after:       after,
	}, nil
}

func checkDuplicateSteps(requestType string, regs []MiddlewareRegistration) error {
	seen := make(map[int]string, len(regs))
	for _, m := range regs {
		if existing, ok := seen[m.Step]; ok {
			return errspkg.NewConfigurationError(
				fmt.Sprintf("handler chain for %q has duplicate middleware step %d (%q and %q)", requestType, m.Step, existing, m.Name),
				nil,
			)
		}
		seen[m.Step] = m.Name
	}
	return nil
}

// descriptionsFor returns (and lazily builds/caches) the chain descriptions
// registered for requestType.
func (b *Builder) descriptionsFor(requestType string) ([]*description, error) {
	b.mu.RLock()
	if d, ok := b.descriptions[requestType]; ok {
		b.mu.RUnlock()
		return d, nil
	}
	regs := b.registrations[requestType]
	b.mu.RUnlock()

	if len(regs) == 0 {
		return nil, nil
	}

	descs := make([]*description, 0, len(regs))
	for _, reg := range regs {
		d, err := describe(requestType, reg)
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}

	b.mu.Lock()
	b.descriptions[requestType] = descs
	b.mu.Unlock()
	return descs, nil
}

// Chain is one instantiated handler chain, ready to run against a single
// request.
type Chain struct {
	handlerType string
	handler     HandlerFunc
	before      []Middleware
	after       []Middleware
}

// HandlerType identifies which registered handler this chain instantiates.
func (c *Chain) HandlerType() string { return c.handlerType }

// Execute runs before-middleware (ascending step), the target handler, then
// after-middleware (descending step), short-circuiting on the first error.
func (c *Chain) Execute(ctx context.Context, req requestpkg.Request) (any, error) {
	for _, m := range c.before {
		if err := m.Handle(ctx, req); err != nil {
			return nil, err
		}
	}

	result, err := c.handler(ctx, req)
	if err != nil {
		return nil, err
	}

	for _, m := range c.after {
		if err := m.Handle(ctx, req); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func instantiate(requestType string, d *description) (*Chain, error) {
	handler, err := d.factory.New()
	if err != nil {
		return nil, errspkg.NewConfigurationError(fmt.Sprintf("handler factory for %q failed", requestType), err)
	}

	before, err := instantiateMiddleware(requestType, d.before)
	if err != nil {
		return nil, err
	}
	after, err := instantiateMiddleware(requestType, d.after)
	if err != nil {
		return nil, err
	}

	return &Chain{
		handlerType: d.handlerType,
		handler:     handler,
		before:      before,
		after:       after,
	}, nil
}

func instantiateMiddleware(requestType string, regs []MiddlewareRegistration) ([]Middleware, error) {
	out := make([]Middleware, 0, len(regs))
	for _, reg := range regs {
		m, err := reg.Factory.New()
		if err != nil {
			return nil, errspkg.NewConfigurationError(fmt.Sprintf("middleware %q factory for %q failed", reg.Name, requestType), err)
		}
		out = append(out, m)
	}
	return out, nil
}

// BuildChains instantiates one Chain per handler registered for requestType.
// With zero registrations it returns an empty slice and a nil error:
// callers that require exactly one (Send) must check length themselves,
// since zero is legal for Publish.
func (b *Builder) BuildChains(requestType string) ([]*Chain, error) {
	descs, err := b.descriptionsFor(requestType)
	if err != nil {
		return nil, err
	}

	chains := make([]*Chain, 0, len(descs))
	for _, d := range descs {
		c, err := instantiate(requestType, d)
		if err != nil {
			return nil, err
		}
		chains = append(chains, c)
	}
	return chains, nil
}

// BuildSingleChain enforces the Send contract: exactly one handler chain
// must be registered for requestType.
func (b *Builder) BuildSingleChain(requestType string) (*Chain, error) {
	chains, err := b.BuildChains(requestType)
	if err != nil {
		return nil, err
	}
	switch len(chains) {
	case 0:
		return nil, errspkg.NewConfigurationError(fmt.Sprintf("no handler registered for %q", requestType), nil)
	case 1:
		return chains[0], nil
	default:
		return nil, errspkg.NewConfigurationError(fmt.Sprintf("%d handlers registered for %q, Send requires exactly one", len(chains), requestType), nil)
	}
}
