package mqtt

import "log"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO that holds messages while the broker is
// unreachable. When full, the oldest message is dropped.
// Not safe for concurrent use; the caller must synchronize.
type outbox struct {
	buf     []bufferedMsg
	head    int // next write position
	count   int
	dropped uint64 // total messages discarded since creation
	warned  bool   // overflow already logged since the last drain
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{buf: make([]bufferedMsg, capacity)}
}

// push appends msg and reports whether an older message had to be dropped.
func (o *outbox) push(msg bufferedMsg) bool {
	full := o.count == len(o.buf)
	o.buf[o.head] = msg
	o.head = (o.head + 1) % len(o.buf)
	if !full {
		o.count++
		return false
	}

	o.dropped++
	if !o.warned {
		log.Printf("mqtt: outbox full (%d messages), dropping oldest", len(o.buf))
		o.warned = true
	}
	return true
}

// drain removes and returns every held message, oldest first.
func (o *outbox) drain() []bufferedMsg {
	if o.count == 0 {
		return nil
	}

	out := make([]bufferedMsg, o.count)
	start := (o.head - o.count + len(o.buf)) % len(o.buf)
	for i := range out {
		out[i] = o.buf[(start+i)%len(o.buf)]
		o.buf[(start+i)%len(o.buf)] = bufferedMsg{}
	}

	o.count = 0
	o.head = 0
	o.warned = false
	return out
}

func (o *outbox) len() int {
	return o.count
}
