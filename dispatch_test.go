package dispatchflow

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestLoggerExports(t *testing.T) {
	logger := NewEntryServiceLogger(&stubEntry{})
	logger.Info("boot", LogFields{"component": "test"})
}

func TestEncodingExportAliases(t *testing.T) {
	payload := map[string]string{"hello": "world"}
	if _, err := Marshal(payload); err != nil {
		t.Fatalf("marshal alias failed: %v", err)
	}
	if _, err := MarshalIndent(payload, "", "  "); err != nil {
		t.Fatalf("marshal indent alias failed: %v", err)
	}
	if err := Unmarshal([]byte(`{"hello":"world"}`), &payload); err != nil {
		t.Fatalf("unmarshal alias failed: %v", err)
	}
}

func TestErrorCategoryConstants(t *testing.T) {
	if IsRetryable(ErrRetry) != true {
		t.Fatalf("expected ErrRetry to classify as retryable")
	}
	if ShouldDeadLetter(ErrDeadLetter) != true {
		t.Fatalf("expected ErrDeadLetter to classify as dead-letter bound")
	}
}

func TestULIDExport(t *testing.T) {
	id := CreateULID()
	if id == "" {
		t.Fatal("expected a non-empty ULID")
	}
	if id2 := CreateULID(); id2 == id {
		t.Fatal("expected successive ULIDs to differ")
	}
}

type orderPlaced struct {
	RequestBase
	OrderID string
}

func TestJSONMapperExport_RoundTrip(t *testing.T) {
	mapper, err := NewJSONMapper[*structpb.Struct](
		"orders.placed", "orders.placed", MessageEventKind,
		func(base RequestBase, payload *structpb.Struct) Request {
			return &orderPlaced{RequestBase: base, OrderID: payload.Fields["order_id"].GetStringValue()}
		},
		func(r Request) *structpb.Struct {
			op := r.(*orderPlaced)
			s, _ := structpb.NewStruct(map[string]any{"order_id": op.OrderID})
			return s
		},
	)
	if err != nil {
		t.Fatalf("NewJSONMapper: %v", err)
	}

	original := &orderPlaced{RequestBase: NewRequestBase(RequestEvent), OrderID: "o-1"}
	msg, err := mapper.ToMessage(original)
	if err != nil {
		t.Fatalf("ToMessage: %v", err)
	}

	roundtripped, err := mapper.ToRequest(msg)
	if err != nil {
		t.Fatalf("ToRequest: %v", err)
	}
	if roundtripped.(*orderPlaced).OrderID != "o-1" {
		t.Fatalf("expected order id preserved, got %+v", roundtripped)
	}
}

func TestCloudEventsTransformExport_Wrap(t *testing.T) {
	transform := NewCloudEventsTransform("dispatchflow.test", 0)
	msg := NewDispatchMessage("orders.placed", MessageEventKind, MessageBody{Bytes: []byte("{}")})

	wrapped, err := transform.Wrap(context.Background(), msg)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if wrapped.Header.Source != "dispatchflow.test" {
		t.Fatalf("expected source stamped, got %q", wrapped.Header.Source)
	}
}

func TestDLQMetricsExport_RecordAndSnapshot(t *testing.T) {
	metrics := NewDLQMetrics(prometheus.NewRegistry())
	metrics.RecordMessageToDLQ("orders.dead", "orders.placed", 1, time.Second)

	snap := metrics.Snapshot()
	if snap.TopicMetrics["orders.dead"] == nil {
		t.Fatalf("expected orders.dead topic recorded, got %+v", snap.TopicMetrics)
	}
}

func TestIntrospectHandlerExport_SnapshotWithNoSources(t *testing.T) {
	handler := NewIntrospectHandler(IntrospectConfig{})
	snap, err := handler.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !snap.CollectedAt.After(time.Time{}) {
		t.Fatal("expected a collected-at timestamp")
	}
}

func TestJobHooksExport_Merge(t *testing.T) {
	var order []string
	a := JobHooks{OnJobStart: func(ctx JobContext) { order = append(order, "a") }}
	b := JobHooks{OnJobStart: func(ctx JobContext) { order = append(order, "b") }}
	merged := a.Merge(b)
	merged.OnJobStart(JobContext{})
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected a then b, got %v", order)
	}
}

type stubEntry struct {
	fields LogFields
	err    error
}

func (s *stubEntry) Error(args ...any) {}
func (s *stubEntry) Info(args ...any)  {}
func (s *stubEntry) Debug(args ...any) {}
func (s *stubEntry) Trace(args ...any) {}

func (s *stubEntry) WithError(err error) *stubEntry {
	clone := *s
	clone.err = err
	return &clone
}

func (s *stubEntry) WithField(key string, value any) *stubEntry {
	clone := *s
	if clone.fields == nil {
		clone.fields = make(LogFields)
	}
	clone.fields[key] = value
	return &clone
}
