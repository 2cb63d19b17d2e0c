// ABOUTME: Thread-safe circular byte buffer
// ABOUTME: Two-segment wraparound copies under a single mutex
package ring

import "sync"

// Buffer is a thread-safe circular buffer of bytes
type Buffer struct {
	buf      []byte
	size     int
	readPos  int
	writePos int
	avail    int // bytes free for writing
	mu       sync.Mutex
}

// New creates a ring buffer with the given capacity in bytes
func New(size int) *Buffer {
	return &Buffer{
		buf:   make([]byte, size),
		size:  size,
		avail: size,
	}
}

// Write copies p into the buffer at the write cursor, wrapping around the end.
// The caller must ensure len(p) <= Free().
func (b *Buffer) Write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	first := n
	if first > b.size-b.writePos {
		first = b.size - b.writePos
	}
	copy(b.buf[b.writePos:], p[:first])
	copy(b.buf, p[first:])

	b.writePos = (b.writePos + n) % b.size
	b.avail -= n
}

// Read copies len(p) bytes out of the buffer at the read cursor, wrapping
// around the end. The caller must ensure len(p) <= Occupied().
func (b *Buffer) Read(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	first := n
	if first > b.size-b.readPos {
		first = b.size - b.readPos
	}
	copy(p, b.buf[b.readPos:b.readPos+first])
	copy(p[first:], b.buf[:n-first])

	b.readPos = (b.readPos + n) % b.size
	b.avail += n
}

// Occupied returns the number of bytes available to read
func (b *Buffer) Occupied() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size - b.avail
}

// Free returns the number of bytes available to write
func (b *Buffer) Free() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.avail
}

// Reset empties the buffer without reallocating its storage
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readPos = 0
	b.writePos = 0
	b.avail = b.size
}

// Cap returns the fixed capacity in bytes
func (b *Buffer) Cap() int {
	return b.size
}
