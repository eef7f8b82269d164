package transform

import (
	"context"
	"testing"

	ce "github.com/flowmesh/dispatchflow/internal/runtime/cloudevents"

	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
)

func TestCloudEventsTransform_WrapStampsEnvelope(t *testing.T) {
	transform := NewCloudEventsTransform("dispatchflow.orders", 5)
	msg := messagepkg.New("orders.placed", messagepkg.Event, messagepkg.Body{Bytes: []byte("{}")})

	wrapped, err := transform.Wrap(context.Background(), msg)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if wrapped.Header.Source != "dispatchflow.orders" {
		t.Fatalf("expected source stamped, got %q", wrapped.Header.Source)
	}
	if wrapped.Header.SpecVersion != ce.SpecVersion {
		t.Fatalf("expected specversion %q, got %q", ce.SpecVersion, wrapped.Header.SpecVersion)
	}
	if wrapped.Header.CEType != "orders.placed" {
		t.Fatalf("expected CEType to default to routing key, got %q", wrapped.Header.CEType)
	}
	if wrapped.Header.Bag[ce.ExtAttempt] != "1" {
		t.Fatalf("expected first attempt recorded, got %q", wrapped.Header.Bag[ce.ExtAttempt])
	}
}

func TestCloudEventsTransform_UnwrapReconcilesAttempt(t *testing.T) {
	transform := NewCloudEventsTransform("dispatchflow.orders", 5)
	msg := messagepkg.New("orders.placed", messagepkg.Event, messagepkg.Body{})
	msg = msg.WithBagValue(ce.ExtAttempt, "3")
	msg = msg.WithBagValue(ce.ExtCorrelationID, "corr-9")

	unwrapped, err := transform.Unwrap(context.Background(), msg)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if unwrapped.Header.HandledCount != 2 {
		t.Fatalf("expected handled count reconciled to 2, got %d", unwrapped.Header.HandledCount)
	}
	if unwrapped.Header.CorrelationID != "corr-9" {
		t.Fatalf("expected correlation id backfilled, got %q", unwrapped.Header.CorrelationID)
	}
}

func TestCloudEventsTransform_NameAndStep(t *testing.T) {
	transform := NewCloudEventsTransform("src", 7)
	if transform.Name() != "cloudevents" {
		t.Fatalf("unexpected name %q", transform.Name())
	}
	if transform.Step() != 7 {
		t.Fatalf("unexpected step %d", transform.Step())
	}
}
