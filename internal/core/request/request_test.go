package request

import "testing"

type testCommand struct {
	Base
	Value string
}

func TestNewBaseAssignsIDOnce(t *testing.T) {
	cmd := testCommand{Base: NewBase(Command), Value: "A"}
	if cmd.ID() == "" {
		t.Fatal("expected a generated id")
	}
	if cmd.Kind() != Command {
		t.Fatalf("expected Command, got %v", cmd.Kind())
	}
}

func TestWithCorrelationIDDoesNotMutateReceiver(t *testing.T) {
	base := NewBase(Event)
	withCorr := base.WithCorrelationID("corr-1")

	if base.CorrelationID() != "" {
		t.Fatalf("original base mutated: %q", base.CorrelationID())
	}
	if withCorr.CorrelationID() != "corr-1" {
		t.Fatalf("expected corr-1, got %q", withCorr.CorrelationID())
	}
	if withCorr.ID() != base.ID() {
		t.Fatal("id must be preserved across WithCorrelationID")
	}
}

func TestTypeNameIsStablePerType(t *testing.T) {
	a := testCommand{Base: NewBase(Command)}
	b := testCommand{Base: NewBase(Command)}

	if TypeName(a) != TypeName(b) {
		t.Fatalf("expected identical type names, got %q vs %q", TypeName(a), TypeName(b))
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		Command:  "command",
		Event:    "event",
		Document: "document",
		Kind(99): "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
