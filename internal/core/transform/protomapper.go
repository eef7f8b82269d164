package transform

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
	requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"
)

// ProtoMapper is a generic Mapper for protobuf-payload requests, adapted
// from the teacher's handlers.clonePrototype/EnsureProtoPrototype: a zero
// prototype is cloned and reset per unwrap so no handler ever mutates the
// shared prototype value.
type ProtoMapper[T proto.Message] struct {
	requestType string
	routingKey  string
	msgType     messagepkg.Type
	prototype   T
	toRequest   func(base requestpkg.Base, payload T) requestpkg.Request
	toPayload   func(requestpkg.Request) T
}

// NewProtoMapper builds a ProtoMapper for requestType. prototype supplies
// the concrete message type to clone on unwrap; it is never mutated itself.
func NewProtoMapper[T proto.Message](requestType, routingKey string, msgType messagepkg.Type, prototype T, toRequest func(requestpkg.Base, T) requestpkg.Request, toPayload func(requestpkg.Request) T) (*ProtoMapper[T], error) {
	if isNilProto(prototype) {
		return nil, errspkg.NewConfigurationError(fmt.Sprintf("proto mapper for %q requires a non-nil prototype", requestType), nil)
	}
	if toRequest == nil || toPayload == nil {
		return nil, errspkg.NewConfigurationError(fmt.Sprintf("proto mapper for %q requires toRequest and toPayload constructors", requestType), nil)
	}
	return &ProtoMapper[T]{
		requestType: requestType,
		routingKey:  routingKey,
		msgType:     msgType,
		prototype:   prototype,
		toRequest:   toRequest,
		toPayload:   toPayload,
	}, nil
}

// RequestType implements Mapper.
func (m *ProtoMapper[T]) RequestType() string { return m.requestType }

// ToMessage implements Mapper by marshaling the request's protobuf payload
// as CloudEvents-friendly JSON (protojson), matching the teacher's wire
// format for proto handlers.
func (m *ProtoMapper[T]) ToMessage(r requestpkg.Request) (messagepkg.Message, error) {
	payload := m.toPayload(r)
	body, err := protojson.Marshal(payload)
	if err != nil {
		return messagepkg.Message{}, fmt.Errorf("dispatchflow: marshal %q payload: %w", m.requestType, err)
	}

	msg := messagepkg.New(m.routingKey, m.msgType, messagepkg.Body{Bytes: body, ContentType: "application/json"})
	if cr, ok := r.(interface{ CorrelationID() string }); ok {
		msg.Header.CorrelationID = cr.CorrelationID()
	}
	return msg, nil
}

// ToRequest implements Mapper by cloning the prototype and unmarshaling the
// message body into it via protojson.
func (m *ProtoMapper[T]) ToRequest(msg messagepkg.Message) (requestpkg.Request, error) {
	payload, err := clonePrototype(m.prototype)
	if err != nil {
		return nil, err
	}
	if err := protojson.Unmarshal(msg.Body.Bytes, payload); err != nil {
		return nil, fmt.Errorf("dispatchflow: unmarshal %q payload: %w", m.requestType, err)
	}

	kind := requestpkg.Event
	if msg.Header.MessageType == messagepkg.Command {
		kind = requestpkg.Command
	} else if msg.Header.MessageType == messagepkg.Document {
		kind = requestpkg.Document
	}

	base := requestpkg.NewBaseWithID(msg.Header.MessageID, kind).WithCorrelationID(msg.Header.CorrelationID)
	return m.toRequest(base, payload), nil
}

func clonePrototype[T proto.Message](prototype T) (T, error) {
	var zero T
	if isNilProto(prototype) {
		return zero, fmt.Errorf("dispatchflow: proto prototype is nil")
	}
	cloned := proto.Clone(prototype)
	proto.Reset(cloned)
	typed, ok := cloned.(T)
	if !ok {
		return zero, fmt.Errorf("dispatchflow: unexpected prototype type %T", cloned)
	}
	return typed, nil
}

func isNilProto[T proto.Message](prototype T) bool {
	msg := proto.Message(prototype)
	if msg == nil {
		return true
	}
	val := reflect.ValueOf(msg)
	switch val.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}
