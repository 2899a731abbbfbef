package logging

import (
	"os"
	"sync"
)

// RingBuffer keeps the most recent bytes written to it. It is the in-memory
// mirror of the log file that gets dumped on SIGUSR1.
type RingBuffer struct {
	mu      sync.Mutex
	data    []byte
	next    int
	wrapped bool
}

// NewRingBuffer returns a buffer holding at most size bytes.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 2 << 20
	}
	return &RingBuffer{data: make([]byte, size)}
}

// Write never fails; the oldest bytes are overwritten once full.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(p)
	size := len(rb.data)
	if n >= size {
		copy(rb.data, p[n-size:])
		rb.next = 0
		rb.wrapped = true
		return n, nil
	}

	k := copy(rb.data[rb.next:], p)
	if k < n {
		copy(rb.data, p[k:])
		rb.wrapped = true
	}
	rb.next = (rb.next + n) % size
	if rb.next == 0 {
		rb.wrapped = true
	}
	return n, nil
}

// Bytes returns the retained bytes, oldest first.
func (rb *RingBuffer) Bytes() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.wrapped {
		return append([]byte(nil), rb.data[:rb.next]...)
	}
	out := make([]byte, 0, len(rb.data))
	out = append(out, rb.data[rb.next:]...)
	return append(out, rb.data[:rb.next]...)
}

// DumpToFile writes Bytes to path.
func (rb *RingBuffer) DumpToFile(path string) error {
	return os.WriteFile(path, rb.Bytes(), 0o644)
}
