package mqtt

import "log"

// bufferedMsg is a serialized message held until the broker comes back.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer keeps the newest capacity messages in arrival order.
// The caller synchronizes.
type ringBuffer struct {
	buf     []bufferedMsg
	start   int // oldest entry
	count   int
	dropped int // since last drain
	total   uint64
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{buf: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	n := len(r.buf)
	if r.count < n {
		r.buf[(r.start+r.count)%n] = msg
		r.count++
		return
	}
	if r.dropped == 0 {
		log.Printf("mqtt: offline buffer full (%d messages), dropping oldest", n)
	}
	r.buf[r.start] = msg
	r.start = (r.start + 1) % n
	r.dropped++
	r.total++
}

// drainAll returns the buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}
	n := len(r.buf)
	out := make([]bufferedMsg, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.start+i)%n])
		r.buf[(r.start+i)%n] = bufferedMsg{}
	}
	if r.dropped > 0 {
		log.Printf("mqtt: %d messages were dropped while offline", r.dropped)
	}
	r.start, r.count, r.dropped = 0, 0, 0
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}

// droppedTotal counts every message overwritten since creation.
func (r *ringBuffer) droppedTotal() uint64 {
	return r.total
}
