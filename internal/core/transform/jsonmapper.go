package transform

import (
	"fmt"
	"reflect"

	jsoncodec "github.com/flowmesh/dispatchflow/internal/runtime/jsoncodec"

	errspkg "github.com/flowmesh/dispatchflow/internal/core/errs"
	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
	requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"
)

// JSONMapper is a generic Mapper that marshals a request's payload as JSON
// body bytes. T is the payload type carried alongside request.Base; since
// Base's fields are private, reconstructing a Request on the unwrap side
// goes through the toRequest constructor rather than reflection over the
// request struct itself — only the payload's own zero value is built via
// reflection, adapted from the teacher's handlers.jsonPrototypeFactory.
type JSONMapper[T any] struct {
	requestType string
	routingKey  string
	msgType     messagepkg.Type
	newPayload  func() T
	toRequest   func(base requestpkg.Base, payload T) requestpkg.Request
	toPayload   func(requestpkg.Request) T
}

// NewJSONMapper builds a JSONMapper for requestType, wrapping messages
// addressed to routingKey as msgType. toRequest rehydrates a Request from an
// unwrapped payload plus the Base recovered from the message header;
// toPayload extracts the payload to marshal when wrapping.
func NewJSONMapper[T any](requestType, routingKey string, msgType messagepkg.Type, toRequest func(requestpkg.Base, T) requestpkg.Request, toPayload func(requestpkg.Request) T) (*JSONMapper[T], error) {
	if toRequest == nil || toPayload == nil {
		return nil, errspkg.NewConfigurationError(fmt.Sprintf("json mapper for %q requires toRequest and toPayload constructors", requestType), nil)
	}

	newPayload, err := jsonPrototypeFactory[T]()
	if err != nil {
		return nil, errspkg.NewConfigurationError(fmt.Sprintf("json mapper for %q: %v", requestType, err), err)
	}

	return &JSONMapper[T]{
		requestType: requestType,
		routingKey:  routingKey,
		msgType:     msgType,
		newPayload:  newPayload,
		toRequest:   toRequest,
		toPayload:   toPayload,
	}, nil
}

// RequestType implements Mapper.
func (m *JSONMapper[T]) RequestType() string { return m.requestType }

// ToMessage implements Mapper by JSON-marshaling the request's payload.
func (m *JSONMapper[T]) ToMessage(r requestpkg.Request) (messagepkg.Message, error) {
	body, err := jsoncodec.Marshal(m.toPayload(r))
	if err != nil {
		return messagepkg.Message{}, fmt.Errorf("dispatchflow: marshal %q payload: %w", m.requestType, err)
	}

	msg := messagepkg.New(m.routingKey, m.msgType, messagepkg.Body{Bytes: body, ContentType: "application/json"})
	if cr, ok := r.(interface{ CorrelationID() string }); ok {
		msg.Header.CorrelationID = cr.CorrelationID()
	}
	if pk, ok := r.(interface{ PartitionKey() string }); ok {
		msg.Header.PartitionKey = pk.PartitionKey()
	}
	return msg, nil
}

// ToRequest implements Mapper by JSON-unmarshaling the message body into a
// fresh payload value and handing it, together with a Base rehydrated from
// the message's id/correlation id, to the toRequest constructor.
func (m *JSONMapper[T]) ToRequest(msg messagepkg.Message) (requestpkg.Request, error) {
	payload := m.newPayload()
	if err := jsoncodec.Unmarshal(msg.Body.Bytes, payload); err != nil {
		return nil, fmt.Errorf("dispatchflow: unmarshal %q payload: %w", m.requestType, err)
	}

	kind := requestpkg.Event
	if msg.Header.MessageType == messagepkg.Command {
		kind = requestpkg.Command
	} else if msg.Header.MessageType == messagepkg.Document {
		kind = requestpkg.Document
	}

	base := requestpkg.NewBaseWithID(msg.Header.MessageID, kind).
		WithCorrelationID(msg.Header.CorrelationID).
		WithPartitionKey(msg.Header.PartitionKey)

	return m.toRequest(base, payload), nil
}

func jsonPrototypeFactory[T any]() (func() T, error) {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil {
		return nil, fmt.Errorf("payload type must be a concrete pointer type")
	}
	if typ.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("payload type %s must be a pointer", typ)
	}
	elem := typ.Elem()
	return func() T {
		clone := reflect.New(elem).Interface()
		return clone.(T)
	}, nil
}
