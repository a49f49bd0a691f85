package mqtt

// ringBuffer is a fixed-capacity FIFO of inbound messages awaiting Poll.
// Not safe for concurrent use — caller must synchronize.
type ringBuffer struct {
	buf      []Message
	capacity int
	head     int // next write position
	count    int
	dropped  int // messages overwritten since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		buf:      make([]Message, capacity),
		capacity: capacity,
	}
}

// push appends msg, overwriting the oldest entry when full.
// It reports whether a message was dropped.
func (r *ringBuffer) push(msg Message) bool {
	if r.count == r.capacity {
		// head is already pointing at the oldest entry
		r.buf[r.head] = msg
		r.head = (r.head + 1) % r.capacity
		r.dropped++
		return true
	}
	r.buf[r.head] = msg
	r.head = (r.head + 1) % r.capacity
	r.count++
	return false
}

func (r *ringBuffer) drainAll() []Message {
	if r.count == 0 {
		return nil
	}

	result := make([]Message, r.count)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
		r.buf[(start+i)%r.capacity] = Message{}
	}

	r.count = 0
	r.head = 0
	r.dropped = 0
	return result
}
