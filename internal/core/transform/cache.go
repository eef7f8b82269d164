package transform

import (
	"context"
	"sync"

	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
	requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"
)

// Direction distinguishes the wrap (outbound) pipeline from the unwrap
// (inbound) pipeline for a given request type. Both share the same
// Registration but are cached separately since nothing prevents a future
// Transform from behaving asymmetrically.
type Direction int

const (
	Wrap Direction = iota
	Unwrap
)

type cacheKey struct {
	requestType string
	direction   Direction
}

// Registry holds the declared Registration per request type and lazily
// builds and caches the Pipeline instances handed out to callers. A single
// Registry is shared across concurrent Send/Publish/Post callers and
// concurrent pump goroutines.
type Registry struct {
	mu            sync.RWMutex
	registrations map[string]Registration
	pipelines     map[cacheKey]*Pipeline
}

// NewRegistry builds an empty transform registry.
func NewRegistry() *Registry {
	return &Registry{
		registrations: make(map[string]Registration),
		pipelines:     make(map[cacheKey]*Pipeline),
	}
}

// Register declares the mapper and transforms for one request type. It does
// not build the pipeline; that happens lazily on first PipelineFor call.
// Registering the same request type twice overwrites the prior registration
// and evicts any cached pipelines for it.
func (r *Registry) Register(reg Registration) error {
	if reg.Mapper == nil {
		return errspkg.NewConfigurationError("transform registration requires a mapper", nil)
	}
	name := reg.Mapper.RequestType()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations[name] = reg
	delete(r.pipelines, cacheKey{requestType: name, direction: Wrap})
	delete(r.pipelines, cacheKey{requestType: name, direction: Unwrap})
	return nil
}

// PipelineFor returns the built, cached pipeline for requestType. The
// pipeline is identical regardless of direction; the cache key still carries
// Direction so future asymmetric transforms don't require a cache-shape
// change.
func (r *Registry) PipelineFor(requestType string, dir Direction) (*Pipeline, error) {
	key := cacheKey{requestType: requestType, direction: dir}

	r.mu.RLock()
	if p, ok := r.pipelines[key]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.pipelines[key]; ok {
		return p, nil
	}

	reg, ok := r.registrations[requestType]
	if !ok {
		return nil, requestTypeError(requestType)
	}

	p, err := buildPipeline(reg)
	if err != nil {
		return nil, err
	}
	r.pipelines[key] = p
	return p, nil
}

// Clear empties the pipeline cache, forcing the next PipelineFor call to
// rebuild. Registrations survive; this exists for tests that swap transforms
// between assertions.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines = make(map[cacheKey]*Pipeline)
}

// WrapRequest resolves the request's pipeline by its type name and wraps it
// into a Message.
func (r *Registry) WrapRequest(ctx context.Context, req requestpkg.Request) (messagepkg.Message, error) {
	p, err := r.PipelineFor(requestpkg.TypeName(req), Wrap)
	if err != nil {
		return messagepkg.Message{}, err
	}
	return p.WrapMessage(ctx, req)
}

// UnwrapMessage resolves requestType's pipeline and unwraps m into a
// Request. Callers must know the target requestType up front (from routing
// key metadata or the message's RoutingKey), since a Message alone carries
// no Go type.
func (r *Registry) UnwrapMessage(ctx context.Context, requestType string, m messagepkg.Message) (requestpkg.Request, error) {
	p, err := r.PipelineFor(requestType, Unwrap)
	if err != nil {
		return nil, err
	}
	return p.UnwrapMessage(ctx, m)
}
