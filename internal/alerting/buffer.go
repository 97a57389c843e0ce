package alerting

// buffer is a fixed-capacity FIFO message store.
//
// It holds at most capacity messages in insertion order; appending to a
// full buffer evicts the oldest entry. The buffer itself is not
// goroutine-safe; the Service serialises all access behind its lock.
type buffer struct {
	messages []*Message
	capacity int
}

// newBuffer creates a buffer with the given fixed capacity.
func newBuffer(capacity int) (*buffer, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	return &buffer{
		messages: make([]*Message, 0, capacity),
		capacity: capacity,
	}, nil
}

// append adds a message, evicting the oldest when full.
// Returns the evicted message, or nil if nothing was evicted.
func (b *buffer) append(m *Message) *Message {
	var evicted *Message
	if len(b.messages) == b.capacity {
		evicted = b.messages[0]
		// Shift rather than reslice so the backing array does not grow
		// without bound over the life of the process.
		copy(b.messages, b.messages[1:])
		b.messages[len(b.messages)-1] = m
		return evicted
	}
	b.messages = append(b.messages, m)
	return evicted
}

// len returns the number of retained messages.
func (b *buffer) len() int {
	return len(b.messages)
}

// snapshot returns copies of all retained messages, oldest first.
func (b *buffer) snapshot() []Message {
	out := make([]Message, len(b.messages))
	for i, m := range b.messages {
		out[i] = *m
	}
	return out
}

// find returns the retained message with the given id, or nil.
func (b *buffer) find(id string) *Message {
	for _, m := range b.messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}
