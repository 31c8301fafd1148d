package process

import (
	"bytes"
	"sync"
)

// DefaultMaxOutputBytes is the per-stream capture limit.
const DefaultMaxOutputBytes = 64 * 1024 * 1024

// BoundedBuffer is an io.Writer that keeps at most limit bytes. Writes past
// the limit are discarded but reported as written, so the child never blocks
// on a full pipe.
type BoundedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	total     int64
	truncated bool
}

// NewBoundedBuffer creates a buffer capped at limit bytes.
func NewBoundedBuffer(limit int) *BoundedBuffer {
	if limit <= 0 {
		limit = DefaultMaxOutputBytes
	}
	return &BoundedBuffer{limit: limit}
}

// Write keeps the part of p that fits and drops the rest. It never fails.
func (b *BoundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	b.total += int64(n)
	if room := b.limit - b.buf.Len(); n > room {
		b.truncated = true
		p = p[:max(room, 0)]
	}
	b.buf.Write(p)
	return n, nil
}

// Bytes returns a copy of the kept prefix.
func (b *BoundedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

// String returns the kept prefix.
func (b *BoundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Len returns the number of bytes kept.
func (b *BoundedBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// Total returns the number of bytes written, dropped bytes included.
func (b *BoundedBuffer) Total() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Truncated reports whether any write was cut short.
func (b *BoundedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
