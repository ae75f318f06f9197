package session

import "sync"

// Buffer is a bounded, append-only capture buffer for PTY output. When an
// append would exceed the capacity, the oldest bytes are discarded from the
// head. Offsets into the buffer are linear: TrimmedTotal reports how many
// bytes have been discarded so far, so a caller holding an absolute offset
// can translate it into a current position.
type Buffer struct {
	mu       sync.Mutex
	data     []byte
	capacity int
	trimmed  int64
}

// NewBuffer creates a buffer bounded at capacity bytes. A capacity of zero
// or less leaves the buffer unbounded.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{capacity: capacity}
}

// Append adds data, discarding from the head if the buffer would exceed its
// capacity. A single write larger than the capacity keeps only the tail.
func (b *Buffer) Append(data []byte) {
	if len(data) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, data...)
	if b.capacity > 0 && len(b.data) > b.capacity {
		excess := len(b.data) - b.capacity
		b.data = b.data[excess:]
		b.trimmed += int64(excess)
	}
}

// String returns the current contents.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}

// Len returns the number of bytes currently held.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// TrimmedTotal returns the cumulative number of bytes discarded from the
// head over the buffer's lifetime.
func (b *Buffer) TrimmedTotal() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trimmed
}

// ReadFrom returns the contents starting at the given position within the
// current buffer, clamped to the valid range.
func (b *Buffer) ReadFrom(pos int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pos < 0 {
		pos = 0
	}
	if pos > len(b.data) {
		pos = len(b.data)
	}
	return string(b.data[pos:])
}

// Clear discards all contents. Cleared bytes do not count toward
// TrimmedTotal; clearing resets the coordinate space rather than advancing
// it.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = b.data[:0]
	b.trimmed = 0
}
