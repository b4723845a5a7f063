package mqtt

import (
	"testing"
)

func msg(i int) bufferedMsg {
	return bufferedMsg{topic: Topic, payload: []byte{byte(i)}}
}

func TestOutboxEmptyDrain(t *testing.T) {
	o := newOutbox(4)
	if got := o.drain(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestOutboxKeepsOrder(t *testing.T) {
	o := newOutbox(8)
	for i := 0; i < 5; i++ {
		if o.push(msg(i)) {
			t.Fatalf("push %d: unexpected drop", i)
		}
	}
	if o.len() != 5 {
		t.Fatalf("len: got %d, want 5", o.len())
	}

	got := o.drain()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i, m := range got {
		if m.payload[0] != byte(i) {
			t.Errorf("item %d: got payload %d", i, m.payload[0])
		}
	}
	if o.len() != 0 || o.drain() != nil {
		t.Error("outbox should be empty after drain")
	}
}

func TestOutboxDropsOldest(t *testing.T) {
	o := newOutbox(3)
	drops := 0
	for i := 0; i < 7; i++ {
		if o.push(msg(i)) {
			drops++
		}
	}
	if drops != 4 || o.dropped != 4 {
		t.Errorf("drops: got %d (counter %d), want 4", drops, o.dropped)
	}

	got := o.drain()
	want := []byte{4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i, m := range got {
		if m.payload[0] != want[i] {
			t.Errorf("item %d: got %d, want %d", i, m.payload[0], want[i])
		}
	}
}

func TestOutboxReusableAfterOverflow(t *testing.T) {
	o := newOutbox(2)
	for i := 0; i < 5; i++ {
		o.push(msg(i))
	}
	o.drain()
	if o.warned {
		t.Error("overflow warning should re-arm after drain")
	}

	o.push(msg(10))
	o.push(msg(11))
	got := o.drain()
	if len(got) != 2 || got[0].payload[0] != 10 || got[1].payload[0] != 11 {
		t.Errorf("unexpected contents after reuse: %v", got)
	}
	if o.dropped != 3 {
		t.Errorf("dropped counter should persist across drains, got %d", o.dropped)
	}
}

func TestOutboxPreservesFields(t *testing.T) {
	o := newOutbox(2)
	o.push(bufferedMsg{topic: TopicSystem, payload: []byte("x"), qos: 1, retained: true})

	got := o.drain()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	m := got[0]
	if m.topic != TopicSystem || string(m.payload) != "x" || m.qos != 1 || !m.retained {
		t.Errorf("fields not preserved: %+v", m)
	}
}

func TestOutboxMinimumCapacity(t *testing.T) {
	o := newOutbox(0)
	o.push(msg(1))
	o.push(msg(2))
	got := o.drain()
	if len(got) != 1 || got[0].payload[0] != 2 {
		t.Errorf("got %v, want only the newest message", got)
	}
}
