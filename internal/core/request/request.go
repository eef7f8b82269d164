// Package request defines the tagged request objects that flow through the
// handler pipeline and the outbox-producer mediator.
package request

import (
	"time"

	idspkg "github.com/flowmesh/dispatchflow/internal/runtime/ids"
)

// Kind distinguishes how many handlers a request type expects.
type Kind int

const (
	// Command requests are expected to have exactly one registered handler
	// and are dispatched with Send.
	Command Kind = iota
	// Event requests may be handled by zero or more handlers and are
	// dispatched with Publish.
	Event
	// Document requests behave like Event for dispatch purposes but mark
	// payloads that represent a point-in-time snapshot rather than a
	// notification.
	Document
)

func (k Kind) String() string {
	switch k {
	case Command:
		return "command"
	case Event:
		return "event"
	case Document:
		return "document"
	default:
		return "unknown"
	}
}

// Request is the identity carried by every object handed to the command
// processor. Concrete request payload types embed Base and add their own
// fields; Base.ID is assigned at construction and must never be mutated
// afterward.
type Base struct {
	id            string
	kind          Kind
	correlationID string
	partitionKey  string
	createdAt     time.Time
}

// NewBase constructs a Base with a fresh id and the current timestamp. The
// correlation id starts unset; callers that want to propagate an existing
// correlation id from an inbound message use WithCorrelationID.
func NewBase(kind Kind) Base {
	return NewBaseWithID(idspkg.CreateULID(), kind)
}

// NewBaseWithID constructs a Base using the supplied id instead of
// generating a new one, for rehydrating a request from a stored message.
func NewBaseWithID(id string, kind Kind) Base {
	return Base{
		id:        id,
		kind:      kind,
		createdAt: time.Now().UTC(),
	}
}

// ID returns the request's identity. It is assigned once at construction.
func (b Base) ID() string { return b.id }

// Kind reports whether this request is a Command, Event, or Document.
func (b Base) Kind() Kind { return b.kind }

// CorrelationID returns the correlation id, if any.
func (b Base) CorrelationID() string { return b.correlationID }

// WithCorrelationID returns a copy of Base carrying the given correlation id.
func (b Base) WithCorrelationID(id string) Base {
	b.correlationID = id
	return b
}

// PartitionKey returns the broker-level ordering key, if any.
func (b Base) PartitionKey() string { return b.partitionKey }

// WithPartitionKey returns a copy of Base carrying the given partition key.
func (b Base) WithPartitionKey(key string) Base {
	b.partitionKey = key
	return b
}

// CreatedAt returns the time the request was constructed.
func (b Base) CreatedAt() time.Time { return b.createdAt }

// Request is implemented by every payload type dispatched through the
// command processor. Embedding Base satisfies it automatically.
type Request interface {
	ID() string
	Kind() Kind
}

// TypeName identifies a request's registered type name, used as the key
// into the handler pipeline builder and the transform registry. It is computed from the
// dynamic Go type of the request so registrations are keyed consistently
// regardless of which constructor built the value.
func TypeName(r Request) string {
	return typeNameOf(r)
}
