package buffer

import (
	"fmt"
	"io"
	"sync"
)

// RingBuffer is a thread-safe fixed-size buffer that overwrites the oldest
// elements when full. It keeps a sliding window of the most recent data.
//
// No method blocks, so a ring is safe to touch from a render loop.
type RingBuffer[T any] struct {
	mu         sync.Mutex
	buf        []T
	head, tail int64
	closeWrite bool
	closeErr   error
}

// RingN creates a new RingBuffer holding at most size elements.
func RingN[T any](size int) *RingBuffer[T] {
	if size <= 0 {
		panic("buffer: ring size must be positive")
	}
	return &RingBuffer[T]{buf: make([]T, size)}
}

// Write appends p, overwriting the oldest elements once the ring is full. It
// never blocks and always consumes all of p.
func (rb *RingBuffer[T]) Write(p []T) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeErr != nil {
		return 0, fmt.Errorf("buffer: write to closed buffer: %w", rb.closeErr)
	}
	if rb.closeWrite {
		return 0, fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
	}
	if len(p) == 0 {
		return 0, nil
	}

	size := int64(len(rb.buf))
	// Only the last len(buf) elements of p can survive.
	src := p
	if skip := len(src) - len(rb.buf); skip > 0 {
		src = src[skip:]
		rb.tail += int64(skip)
	}
	for len(src) > 0 {
		tail := int(rb.tail % size)
		n := copy(rb.buf[tail:], src)
		src = src[n:]
		rb.tail += int64(n)
	}
	if rb.tail-rb.head > size {
		rb.head = rb.tail - size
	}
	return len(p), nil
}

// Add appends a single element, overwriting the oldest one if full.
func (rb *RingBuffer[T]) Add(t T) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeErr != nil {
		return fmt.Errorf("buffer: write to closed buffer: %w", rb.closeErr)
	}
	if rb.closeWrite {
		return fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
	}
	rb.buf[rb.tail%int64(len(rb.buf))] = t
	rb.tail++
	if rb.tail-rb.head > int64(len(rb.buf)) {
		rb.head++
	}
	return nil
}

// TryRead reads whatever is buffered into p. It returns 0 when the ring is
// empty, whether or not it has been closed, and after CloseWithError.
func (rb *RingBuffer[T]) TryRead(p []T) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeErr != nil {
		return 0
	}
	return rb.readLocked(p)
}

func (rb *RingBuffer[T]) readLocked(p []T) int {
	avail := int(rb.tail - rb.head)
	if avail > len(p) {
		avail = len(p)
	}
	size := int64(len(rb.buf))
	for i := 0; i < avail; i++ {
		p[i] = rb.buf[(rb.head+int64(i))%size]
	}
	rb.head += int64(avail)
	return avail
}

// Window copies the most recent len(dst) written elements into dst in
// chronological order without consuming them. If fewer elements have ever
// been buffered, the front of dst is zero-filled. Window reads the history
// regardless of what TryRead has consumed, so a ring can act as both a queue and
// an observation window.
func (rb *RingBuffer[T]) Window(dst []T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	size := int64(len(rb.buf))
	have := rb.tail
	if have > size {
		have = size
	}
	n := int64(len(dst))
	for i := int64(0); i < n; i++ {
		back := n - i // 1 means the newest element
		if back > have {
			dst[i] = zero
			continue
		}
		dst[i] = rb.buf[(rb.tail-back)%size]
	}
}

// Len returns the number of unread elements.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return int(rb.tail - rb.head)
}

// Bytes returns a copy of the unread elements in order.
func (rb *RingBuffer[T]) Bytes() []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	out := make([]T, rb.tail-rb.head)
	size := int64(len(rb.buf))
	for i := range out {
		out[i] = rb.buf[(rb.head+int64(i))%size]
	}
	return out
}

// CloseWrite closes the write side. Buffered elements stay readable.
func (rb *RingBuffer[T]) CloseWrite() error {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.closeWrite = true
	return nil
}

// CloseWithError closes both ends. Writes return err and TryRead returns 0.
func (rb *RingBuffer[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeErr != nil {
		return nil
	}
	rb.closeErr = err
	rb.closeWrite = true
	return nil
}

// Close is CloseWithError(io.ErrClosedPipe).
func (rb *RingBuffer[T]) Close() error {
	return rb.CloseWithError(io.ErrClosedPipe)
}
