// Package transform implements the wrap/unwrap pipelines that convert
// requests to messages on the publish side and messages back to requests on
// the consume side.
package transform

import (
	"context"
	"fmt"
	"sort"

	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
	requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"
)

// Mapper is the first step of a wrap pipeline and the terminal step of the
// matching unwrap pipeline: it converts between a concrete request type and
// its Message representation.
type Mapper interface {
	// RequestType names the request type this mapper handles, matching
	// request.TypeName for registered instances of that type.
	RequestType() string
	ToMessage(r requestpkg.Request) (messagepkg.Message, error)
	ToRequest(m messagepkg.Message) (requestpkg.Request, error)
}

// Transform mutates a message's header/body on the way out (Wrap) or on the
// way in (Unwrap) — for example compression, claim-check substitution, or
// header enrichment. Step orders transforms relative to one another; ties
// are broken by registration order, matching the attribute step_index the
// distilled source used reflection for.
type Transform interface {
	Name() string
	Step() int
	Wrap(ctx context.Context, m messagepkg.Message) (messagepkg.Message, error)
	Unwrap(ctx context.Context, m messagepkg.Message) (messagepkg.Message, error)
}

// Pipeline is a built, ordered chain for one request type and direction.
type Pipeline struct {
	requestType string
	mapper      Mapper
	transforms  []Transform // always stored wrap-order; Unwrap walks it in reverse
}

// WrapMessage runs the mapper, then transform₁..transformₙ in step order.
func (p *Pipeline) WrapMessage(ctx context.Context, r requestpkg.Request) (messagepkg.Message, error) {
	m, err := p.mapper.ToMessage(r)
	if err != nil {
		return messagepkg.Message{}, errspkg.NewMessageMappingError(p.requestType, err)
	}
	for _, t := range p.transforms {
		m, err = t.Wrap(ctx, m)
		if err != nil {
			return messagepkg.Message{}, errspkg.NewMessageMappingError(p.requestType, err)
		}
	}
	return m, nil
}

// UnwrapMessage runs the transforms in reverse order then the mapper, per
// spec §4.1.
func (p *Pipeline) UnwrapMessage(ctx context.Context, m messagepkg.Message) (requestpkg.Request, error) {
	var err error
	for i := len(p.transforms) - 1; i >= 0; i-- {
		m, err = p.transforms[i].Unwrap(ctx, m)
		if err != nil {
			return nil, errspkg.NewMessageMappingError(p.requestType, err)
		}
	}
	r, err := p.mapper.ToRequest(m)
	if err != nil {
		return nil, errspkg.NewMessageMappingError(p.requestType, err)
	}
	return r, nil
}

// Registration declares a mapper plus its transforms for one request type,
// the static equivalent of scanning attribute-declared metadata on a mapper
// type in a reflective source runtime.
type Registration struct {
	Mapper     Mapper
	Transforms []Transform
}

func buildPipeline(reg Registration) (*Pipeline, error) {
	if reg.Mapper == nil {
		return nil, errspkg.NewConfigurationError("transform pipeline requires a mapper", nil)
	}

	sorted := make([]Transform, len(reg.Transforms))
	copy(sorted, reg.Transforms)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Step() < sorted[j].Step()
	})

	return &Pipeline{
		requestType: reg.Mapper.RequestType(),
		mapper:      reg.Mapper,
		transforms:  sorted,
	}, nil
}

func requestTypeError(name string) error {
	return errspkg.NewConfigurationError(fmt.Sprintf("no mapper registered for request type %q", name), nil)
}
