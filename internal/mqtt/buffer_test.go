package mqtt

import (
	"testing"
)

func msg(b byte) Message {
	return Message{Topic: "t", Payload: []byte{b}}
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10)
	got := rb.drainAll()
	if got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestRingBufferPushAndDrain(t *testing.T) {
	rb := newRingBuffer(10)
	for i := 0; i < 5; i++ {
		if rb.push(msg(byte(i))) {
			t.Fatalf("push %d reported a drop", i)
		}
	}

	got := rb.drainAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := 0; i < 5; i++ {
		if got[i].Payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, got[i].Payload[0])
		}
	}

	if got2 := rb.drainAll(); got2 != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got2))
	}
}

func TestRingBufferOverflowDropsOldest(t *testing.T) {
	capacity := 5
	rb := newRingBuffer(capacity)

	// Push 8 items (0..7); the buffer keeps the most recent 5 (3..7).
	drops := 0
	for i := 0; i < capacity+3; i++ {
		if rb.push(msg(byte(i))) {
			drops++
		}
	}
	if drops != 3 {
		t.Errorf("expected 3 drops reported, got %d", drops)
	}
	if rb.dropped != 3 {
		t.Errorf("dropped counter: got %d, want 3", rb.dropped)
	}

	got := rb.drainAll()
	if len(got) != capacity {
		t.Fatalf("expected %d items, got %d", capacity, len(got))
	}
	for i := 0; i < capacity; i++ {
		want := byte(i + 3)
		if got[i].Payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, got[i].Payload[0])
		}
	}
	if rb.dropped != 0 {
		t.Errorf("dropped counter must reset on drain, got %d", rb.dropped)
	}
}

func TestRingBufferMultipleCycles(t *testing.T) {
	rb := newRingBuffer(5)

	for i := 0; i < 3; i++ {
		rb.push(msg(byte(i)))
	}
	if got := rb.drainAll(); len(got) != 3 {
		t.Fatalf("cycle 1: expected 3 items, got %d", len(got))
	}

	for i := 10; i < 14; i++ {
		rb.push(msg(byte(i)))
	}
	got := rb.drainAll()
	if len(got) != 4 {
		t.Fatalf("cycle 2: expected 4 items, got %d", len(got))
	}
	for i, m := range got {
		want := byte(10 + i)
		if m.Payload[0] != want {
			t.Errorf("cycle 2 item %d: expected %d, got %d", i, want, m.Payload[0])
		}
	}
}

func TestRingBufferCount(t *testing.T) {
	rb := newRingBuffer(10)
	if rb.count != 0 {
		t.Errorf("expected count 0, got %d", rb.count)
	}

	rb.push(Message{Topic: "t"})
	rb.push(Message{Topic: "t"})
	if rb.count != 2 {
		t.Errorf("expected count 2, got %d", rb.count)
	}

	rb.drainAll()
	if rb.count != 0 {
		t.Errorf("expected count 0 after drain, got %d", rb.count)
	}
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(10)
	rb.push(Message{Topic: "sensorcluster/led", Payload: []byte(`{"on":100}`)})

	got := rb.drainAll()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if got[0].Topic != "sensorcluster/led" {
		t.Errorf("topic: got %s, want sensorcluster/led", got[0].Topic)
	}
	if string(got[0].Payload) != `{"on":100}` {
		t.Errorf("payload: got %s", got[0].Payload)
	}
}
