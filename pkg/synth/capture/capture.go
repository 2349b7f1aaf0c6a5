// Package capture acquires external audio streams, such as a browser
// microphone, for use as voice sources.
//
// Acquisition is asynchronous: an Acquirer may wait on a permission prompt
// answered elsewhere. Gate implements that handshake. WAVAcquirer serves
// streams from WAV files for headless use.
//
// Streams deliver float32 samples at the engine's sample rate. ReadSamples
// never blocks; missing samples are the caller's silence.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/haivivi/tonewave/pkg/audio/resampler"
	"github.com/haivivi/tonewave/pkg/buffer"
)

// ErrDenied is returned when permission is refused or no stream can be
// opened.
var ErrDenied = errors.New("capture: acquisition denied")

// Stream is an acquired capture stream.
type Stream interface {
	// ReadSamples copies available samples into p without blocking.
	ReadSamples(p []float32) int

	// Close releases the capture.
	Close() error
}

// Acquirer opens capture streams.
type Acquirer interface {
	Acquire(ctx context.Context, id string) (Stream, error)
}

// AcquirerFunc adapts a function to Acquirer.
type AcquirerFunc func(ctx context.Context, id string) (Stream, error)

// Acquire calls f.
func (f AcquirerFunc) Acquire(ctx context.Context, id string) (Stream, error) {
	return f(ctx, id)
}

// Deny is an Acquirer that refuses every request.
var Deny = AcquirerFunc(func(context.Context, string) (Stream, error) {
	return nil, fmt.Errorf("%w: no capture device", ErrDenied)
})

// PCMStream decodes mono L16 audio from a reader, converts it to the target
// rate and queues it for non-blocking reads. At most one second of audio is
// queued; older samples are overwritten when the consumer falls behind.
type PCMStream struct {
	src  io.Reader
	rs   *resampler.Resampler
	ring *buffer.RingBuffer[float32]
	done chan struct{}

	closeOnce sync.Once
}

// NewPCMStream starts pumping r, which carries L16 at srcRate, into a queue
// at dstRate.
func NewPCMStream(r io.Reader, srcRate, dstRate int) (*PCMStream, error) {
	rs, err := resampler.New(r, srcRate, dstRate)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	s := &PCMStream{
		src:  r,
		rs:   rs,
		ring: buffer.RingN[float32](dstRate),
		done: make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

func (s *PCMStream) pump() {
	defer close(s.done)
	buf := make([]float32, 1024)
	for {
		n, err := s.rs.Read(buf)
		if n > 0 {
			if _, werr := s.ring.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.ring.CloseWrite()
			} else {
				s.ring.CloseWithError(err)
			}
			return
		}
	}
}

// ReadSamples copies queued samples into p without blocking.
func (s *PCMStream) ReadSamples(p []float32) int {
	return s.ring.TryRead(p)
}

// Buffered returns the number of queued samples.
func (s *PCMStream) Buffered() int {
	return s.ring.Len()
}

// Drained reports whether the source has ended and the queue is empty.
func (s *PCMStream) Drained() bool {
	select {
	case <-s.done:
		return s.ring.Len() == 0
	default:
		return false
	}
}

// Wait blocks until the source is exhausted or the stream is closed.
func (s *PCMStream) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the stream. If the source is an io.Closer it is closed too, so a
// pump blocked on it returns.
func (s *PCMStream) Close() error {
	s.closeOnce.Do(func() {
		// The resampler holds its lock while reading, so the source goes first.
		if c, ok := s.src.(io.Closer); ok {
			c.Close()
		}
		s.ring.Close()
		s.rs.Close()
	})
	return nil
}
