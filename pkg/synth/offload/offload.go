// Package offload runs spectral estimation on an isolated worker goroutine.
//
// The caller and the worker share no memory: every submission and every
// result crosses the boundary as a msgpack-encoded byte slice. The inbound
// mailbox holds one message. A newer submission replaces an older one the
// worker has not picked up yet, so under load only the latest frames are
// analyzed. Replaced submissions are counted by Dropped.
package offload

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("offload: channel closed")

	// ErrNoCompute is returned by Start without a compute function.
	ErrNoCompute = errors.New("offload: compute function is required")
)

// Frame is one analysis frame as seen by the worker.
type Frame struct {
	ID      string    `msgpack:"id"`
	Handle  string    `msgpack:"handle,omitempty"`
	Kind    string    `msgpack:"kind"`
	Samples []float32 `msgpack:"samples"`
}

// Message is one submission.
type Message struct {
	Seq        uint64  `msgpack:"seq"`
	SampleRate int     `msgpack:"sample_rate"`
	FFTSize    int     `msgpack:"fft_size"`
	Payload    []Frame `msgpack:"payload"`
}

// Result is the estimate for one frame.
type Result struct {
	ID     string `msgpack:"id"`
	Handle string `msgpack:"handle,omitempty"`

	// Bin is the index of the strongest frequency bin.
	Bin int `msgpack:"bin"`

	// Ratio is Bin divided by the number of bins. It is a unitless position
	// in the spectrum, not a frequency.
	Ratio float64 `msgpack:"ratio"`

	// Frequency is Bin converted to Hz.
	Frequency float64 `msgpack:"frequency"`
}

// Batch is the worker's reply to one Message.
type Batch struct {
	Seq     uint64   `msgpack:"seq"`
	Results []Result `msgpack:"results"`
}

// Compute is the worker computation. It runs on the worker goroutine only.
type Compute func(Message) []Result

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.logger = l
		}
	}
}

// Channel relays frame batches to a worker goroutine and results back to a
// handler.
type Channel struct {
	compute Compute
	logger  *slog.Logger

	mailbox chan []byte
	results chan []byte
	done    chan struct{}
	wg      sync.WaitGroup

	submitMu sync.Mutex
	seq      uint64
	closed   bool

	handlerMu sync.RWMutex
	handler   func(Batch)

	dropped   atomic.Uint64
	processed atomic.Uint64
}

// Start launches the worker and the result relay.
func Start(compute Compute, opts ...Option) (*Channel, error) {
	if compute == nil {
		return nil, ErrNoCompute
	}
	c := &Channel{
		compute: compute,
		logger:  slog.Default(),
		mailbox: make(chan []byte, 1),
		results: make(chan []byte, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.wg.Add(2)
	go c.work()
	go c.relay()
	return c, nil
}

// OnResult registers the result handler, replacing any previous one. The
// handler runs on the relay goroutine.
func (c *Channel) OnResult(h func(Batch)) {
	c.handlerMu.Lock()
	c.handler = h
	c.handlerMu.Unlock()
}

// Submit hands a batch to the worker and returns its sequence number. It
// never blocks on the worker.
func (c *Channel) Submit(msg Message) (uint64, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}

	c.seq++
	msg.Seq = c.seq
	data, err := msgpack.Marshal(&msg)
	if err != nil {
		return 0, fmt.Errorf("offload: encode: %w", err)
	}
	for {
		select {
		case c.mailbox <- data:
			return msg.Seq, nil
		default:
		}
		select {
		case <-c.mailbox:
			c.dropped.Add(1)
		default:
		}
	}
}

// Dropped returns how many submissions were replaced before the worker saw
// them.
func (c *Channel) Dropped() uint64 { return c.dropped.Load() }

// Processed returns how many submissions the worker has computed.
func (c *Channel) Processed() uint64 { return c.processed.Load() }

// Close stops the worker and the relay and waits for both.
func (c *Channel) Close() error {
	c.submitMu.Lock()
	if c.closed {
		c.submitMu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.submitMu.Unlock()
	c.wg.Wait()
	return nil
}

func (c *Channel) work() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.mailbox:
			out, err := c.run(data)
			if err != nil {
				c.logger.Warn("offload: worker failed", "error", err)
				continue
			}
			c.processed.Add(1)
			select {
			case c.results <- out:
			case <-c.done:
				return
			}
		}
	}
}

func (c *Channel) run(data []byte) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("offload: compute panic: %v", r)
		}
	}()
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("offload: decode message: %w", err)
	}
	batch := Batch{Seq: msg.Seq, Results: c.compute(msg)}
	return msgpack.Marshal(&batch)
}

func (c *Channel) relay() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.results:
			var batch Batch
			if err := msgpack.Unmarshal(data, &batch); err != nil {
				c.logger.Warn("offload: decode result", "error", err)
				continue
			}
			c.handlerMu.RLock()
			h := c.handler
			c.handlerMu.RUnlock()
			if h != nil {
				h(batch)
			}
		}
	}
}
