package registry

import (
	"fmt"

	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
)

// Multiplicity reports how many handlers are registered for a request type.
type Multiplicity int

const (
	Unregistered Multiplicity = iota
	One
	Many
)

// handlerCounter is the narrow view of handlerpipeline.Builder the
// subscriber registry needs; kept as an interface so this package doesn't
// import handlerpipeline and create a dependency cycle with the processor
// layer that wires both together.
type handlerCounter interface {
	HandlerCount(requestType string) int
}

// SubscriberRegistry answers "how many handlers, and of what dispatch
// shape, does this request type have" — the question the pump needs
// answered before it decides whether a COMMAND message can legally resolve
// to Send or an EVENT/DOCUMENT message to Publish.
type SubscriberRegistry struct {
	handlers handlerCounter
}

// NewSubscriberRegistry wraps a handler pipeline builder (or any type
// satisfying handlerCounter, e.g. a test double) with multiplicity queries.
func NewSubscriberRegistry(handlers handlerCounter) *SubscriberRegistry {
	return &SubscriberRegistry{handlers: handlers}
}

// MultiplicityFor reports the registered handler count for requestType,
// bucketed into Unregistered/One/Many.
func (s *SubscriberRegistry) MultiplicityFor(requestType string) Multiplicity {
	switch s.handlers.HandlerCount(requestType) {
	case 0:
		return Unregistered
	case 1:
		return One
	default:
		return Many
	}
}

// ValidateForMessageType enforces the pump's validate-message-type rule:
// COMMAND must resolve to exactly one handler (Send-style); EVENT and
// DOCUMENT accept zero or more (Publish-style). Any other pairing is a
// ConfigurationError.
func (s *SubscriberRegistry) ValidateForMessageType(requestType string, msgType messagepkg.Type) error {
	multiplicity := s.MultiplicityFor(requestType)

	switch msgType {
	case messagepkg.Command:
		if multiplicity != One {
			return errspkg.NewConfigurationError(
				fmt.Sprintf("COMMAND message for %q requires exactly one registered handler, found multiplicity %v", requestType, multiplicity),
				nil,
			)
		}
	case messagepkg.Event, messagepkg.Document:
		// zero or more handlers are both legal for Publish-style dispatch.
	default:
		return errspkg.NewConfigurationError(fmt.Sprintf("message type %v is not dispatchable", msgType), nil)
	}
	return nil
}
