// Package message defines the wire/outbox representation that requests are
// converted to on the publish side and converted from on the consume side.
package message

import (
	"time"

	idspkg "github.com/flowmesh/dispatchflow/internal/runtime/ids"
)

// Type classifies a Message for pump dispatch purposes.
type Type int

const (
	// None is the sole legal signal for "the channel had nothing to
	// deliver"; it is never produced by a mapper.
	None Type = iota
	// Command messages are dispatched with Send (exactly one handler).
	Command
	// Event messages are dispatched with Publish (zero or more handlers).
	Event
	// Document messages are dispatched with Publish, like Event.
	Document
	// Quit is a control sentinel injected to make a pump exit its loop. It
	// is never produced by a mapper.
	Quit
	// Unacceptable marks a message a mapper could not translate.
	Unacceptable
)

func (t Type) String() string {
	switch t {
	case None:
		return "NONE"
	case Command:
		return "COMMAND"
	case Event:
		return "EVENT"
	case Document:
		return "DOCUMENT"
	case Quit:
		return "QUIT"
	case Unacceptable:
		return "UNACCEPTABLE"
	default:
		return "UNKNOWN"
	}
}

// Header carries everything about a Message except its payload. Arbitrary
// string metadata that doesn't have a first-class field lives in Bag.
type Header struct {
	MessageID     string
	RoutingKey    string
	MessageType   Type
	Timestamp     time.Time
	CorrelationID string
	ReplyTo       string
	ContentType   string
	HandledCount  int
	Delayed       time.Duration
	PartitionKey  string
	Bag           map[string]string

	// CloudEvents-compatible attributes, carried for interop with brokers
	// that understand the CloudEvents wire format natively.
	Source      string
	CEType      string
	SpecVersion string
	DataSchema  string
	Subject     string
}

// Body is the payload: raw bytes plus the content type describing how to
// interpret them.
type Body struct {
	Bytes       []byte
	ContentType string
}

// Message is the header+body pair that is the unit of transport between the
// wrap pipeline, the outbox, and the unwrap pipeline. Messages are immutable
// once produced; only header-bag mutation by pipeline steps is permitted
// before dispatch.
type Message struct {
	Header Header
	Body   Body
}

// New constructs a Message with a freshly generated message id and the
// current timestamp. Callers typically only use this directly in tests or
// reference transport adapters; production code goes through the wrap
// pipeline's mapper.
func New(routingKey string, msgType Type, body Body) Message {
	return Message{
		Header: Header{
			MessageID:   idspkg.CreateULID(),
			RoutingKey:  routingKey,
			MessageType: msgType,
			Timestamp:   time.Now().UTC(),
			Bag:         make(map[string]string),
		},
		Body: body,
	}
}

// NewQuit builds the QUIT control sentinel used to make a pump exit cleanly,
// for example from tests.
func NewQuit() Message {
	return Message{Header: Header{MessageType: Quit, Bag: map[string]string{}}}
}

// NewNone builds the empty-channel signal a Channel implementation returns
// when a receive times out without a message.
func NewNone() Message {
	return Message{Header: Header{MessageType: None, Bag: map[string]string{}}}
}

// IsEmpty reports whether m is the NONE sentinel.
func (m Message) IsEmpty() bool {
	return m.Header.MessageType == None
}

// WithBagValue returns a copy of m with the given bag entry set. Bag is the
// only part of a produced Message pipeline steps are permitted to mutate.
func (m Message) WithBagValue(key, value string) Message {
	bag := make(map[string]string, len(m.Header.Bag)+1)
	for k, v := range m.Header.Bag {
		bag[k] = v
	}
	bag[key] = value
	m.Header.Bag = bag
	return m
}

// IncrementHandledCount returns a copy of m with HandledCount incremented.
// HandledCount is monotonically non-decreasing for the lifetime of a
// message as it is requeued.
func (m Message) IncrementHandledCount() Message {
	m.Header.HandledCount++
	return m
}
