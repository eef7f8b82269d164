package transform

import (
	"testing"

	"google.golang.org/protobuf/types/known/structpb"

	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
	requestpkg "github.com/flowmesh/dispatchflow/internal/core/request"
)

type protoOrderRequest struct {
	requestpkg.Base
	Payload *structpb.Struct
}

func newProtoOrderMapper(t *testing.T) *ProtoMapper[*structpb.Struct] {
	t.Helper()
	mapper, err := NewProtoMapper[*structpb.Struct](
		"order.placed.proto",
		"orders.placed.proto",
		messagepkg.Event,
		&structpb.Struct{},
		func(base requestpkg.Base, payload *structpb.Struct) requestpkg.Request {
			return &protoOrderRequest{Base: base, Payload: payload}
		},
		func(r requestpkg.Request) *structpb.Struct {
			return r.(*protoOrderRequest).Payload
		},
	)
	if err != nil {
		t.Fatalf("NewProtoMapper: %v", err)
	}
	return mapper
}

func TestProtoMapper_RoundTrip(t *testing.T) {
	mapper := newProtoOrderMapper(t)
	payload, err := structpb.NewStruct(map[string]any{"order_id": "ord-1"})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	req := &protoOrderRequest{Base: requestpkg.NewBase(requestpkg.Event), Payload: payload}

	msg, err := mapper.ToMessage(req)
	if err != nil {
		t.Fatalf("ToMessage: %v", err)
	}
	if msg.Header.RoutingKey != "orders.placed.proto" {
		t.Fatalf("unexpected routing key %q", msg.Header.RoutingKey)
	}

	back, err := mapper.ToRequest(msg)
	if err != nil {
		t.Fatalf("ToRequest: %v", err)
	}
	got := back.(*protoOrderRequest)
	if got.Payload.Fields["order_id"].GetStringValue() != "ord-1" {
		t.Fatalf("unexpected round-tripped payload: %v", got.Payload)
	}
}

func TestNewProtoMapper_RejectsNilPrototype(t *testing.T) {
	if _, err := NewProtoMapper[*structpb.Struct]("x", "y", messagepkg.Event, nil, func(requestpkg.Base, *structpb.Struct) requestpkg.Request { return nil }, func(requestpkg.Request) *structpb.Struct { return nil }); err == nil {
		t.Fatal("expected error for nil prototype")
	}
}
