package message

import "testing"

func TestNewNoneIsEmpty(t *testing.T) {
	m := NewNone()
	if !m.IsEmpty() {
		t.Fatal("expected NONE message to report IsEmpty")
	}
	if m.Header.MessageType.String() != "NONE" {
		t.Fatalf("unexpected string form: %s", m.Header.MessageType)
	}
}

func TestNewQuitIsNotEmpty(t *testing.T) {
	m := NewQuit()
	if m.IsEmpty() {
		t.Fatal("QUIT must not be classified as the empty-channel signal")
	}
	if m.Header.MessageType != Quit {
		t.Fatalf("expected Quit, got %v", m.Header.MessageType)
	}
}

func TestWithBagValueDoesNotMutateOriginal(t *testing.T) {
	original := New("orders", Command, Body{Bytes: []byte("{}")})
	original = original.WithBagValue("a", "1")

	updated := original.WithBagValue("b", "2")

	if _, ok := original.Header.Bag["b"]; ok {
		t.Fatal("WithBagValue must not mutate the receiver's bag")
	}
	if updated.Header.Bag["a"] != "1" || updated.Header.Bag["b"] != "2" {
		t.Fatalf("expected both keys present, got %#v", updated.Header.Bag)
	}
}

func TestIncrementHandledCountIsMonotonic(t *testing.T) {
	m := New("orders", Event, Body{})
	m = m.IncrementHandledCount()
	m = m.IncrementHandledCount()
	if m.Header.HandledCount != 2 {
		t.Fatalf("expected handled count 2, got %d", m.Header.HandledCount)
	}
}

func TestEncodeDecodeBagRoundTrips(t *testing.T) {
	bag := map[string]string{"trace_id": "abc", "source": "orders-service"}

	encoded, err := EncodeBag(bag)
	if err != nil {
		t.Fatalf("EncodeBag: %v", err)
	}

	decoded, err := DecodeBag(encoded)
	if err != nil {
		t.Fatalf("DecodeBag: %v", err)
	}
	if len(decoded) != len(bag) {
		t.Fatalf("expected %d entries, got %d", len(bag), len(decoded))
	}
	for k, v := range bag {
		if decoded[k] != v {
			t.Errorf("key %q: expected %q, got %q", k, v, decoded[k])
		}
	}
}

func TestDecodeBagEmptyString(t *testing.T) {
	decoded, err := DecodeBag("")
	if err != nil {
		t.Fatalf("DecodeBag: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected empty map, got %#v", decoded)
	}
}
