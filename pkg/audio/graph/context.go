package graph

import (
	"container/heap"
	"math"
	"slices"
)

// RenderQuantum is the number of frames processed per graph pass.
const RenderQuantum = 128

// DefaultSampleRate is used when no WithSampleRate option is given.
const DefaultSampleRate = 48000

// Option configures a Context.
type Option interface {
	apply(*Context)
}

type sampleRateOption int

func (o sampleRateOption) apply(c *Context) {
	if o > 0 {
		c.sampleRate = int(o)
	}
}

// WithSampleRate sets the render sample rate in Hz.
func WithSampleRate(rate int) Option {
	return sampleRateOption(rate)
}

// Context owns the render clock, the destination, the analyser taps and the
// render-clock timers.
type Context struct {
	sampleRate int
	frame      int64 // frames rendered so far
	quantum    int64 // id of the last rendered quantum

	dest *Destination
	taps []*Analyser

	timers   timerHeap
	timerSeq uint64

	pending []float32 // rendered frames not yet returned by Render
}

// NewContext creates a Context at time 0.
func NewContext(opts ...Option) *Context {
	c := &Context{sampleRate: DefaultSampleRate}
	for _, opt := range opts {
		opt.apply(c)
	}
	c.dest = newDestination(c)
	return c
}

// SampleRate returns the render sample rate in Hz.
func (c *Context) SampleRate() int {
	return c.sampleRate
}

// CurrentTime returns the render clock in seconds.
func (c *Context) CurrentTime() float64 {
	return float64(c.frame) / float64(c.sampleRate)
}

// CurrentFrame returns the number of frames rendered so far.
func (c *Context) CurrentFrame() int64 {
	return c.frame
}

// Destination returns the graph sink.
func (c *Context) Destination() *Destination {
	return c.dest
}

// Render fills out with the next len(out) frames from the destination.
// Timers due inside the rendered span fire between quanta.
func (c *Context) Render(out []float32) {
	for len(out) > 0 {
		if len(c.pending) == 0 {
			c.renderQuantum()
			c.pending = c.dest.out
		}
		n := copy(out, c.pending)
		out = out[n:]
		c.pending = c.pending[n:]
	}
}

// Advance renders and discards the given number of seconds, rounded to the
// nearest frame.
func (c *Context) Advance(seconds float64) {
	frames := int(math.Round(seconds * float64(c.sampleRate)))
	scratch := make([]float32, min(frames, 4096))
	for frames > 0 {
		n := min(frames, len(scratch))
		c.Render(scratch[:n])
		frames -= n
	}
}

func (c *Context) renderQuantum() {
	c.quantum++
	q := c.quantum
	c.dest.pull(q)
	for _, tap := range slices.Clone(c.taps) {
		tap.pull(q)
	}
	c.frame += RenderQuantum
	c.runTimers()
}

func (c *Context) attachTap(a *Analyser) {
	if !slices.Contains(c.taps, a) {
		c.taps = append(c.taps, a)
	}
}

func (c *Context) detachTap(a *Analyser) {
	c.taps = slices.DeleteFunc(c.taps, func(t *Analyser) bool { return t == a })
}

// ActiveTaps returns the number of analysers rendered every quantum.
func (c *Context) ActiveTaps() int {
	return len(c.taps)
}

// Timer is a one-shot action scheduled on the render clock.
type Timer struct {
	ctx      *Context
	deadline int64
	seq      uint64
	fn       func()
	index    int
}

// AfterFunc schedules fn to run once the render clock has advanced by seconds.
// The deadline rounds up to a whole frame, so fn never runs before a ramp
// ending at the same time has finished. A non-positive delay fires at the end
// of the next quantum.
func (c *Context) AfterFunc(seconds float64, fn func()) *Timer {
	// The tolerance keeps exact frame counts from rounding up on float error.
	delay := int64(math.Ceil(max(seconds, 0)*float64(c.sampleRate) - 1e-6))
	c.timerSeq++
	t := &Timer{
		ctx:      c,
		deadline: c.frame + delay,
		seq:      c.timerSeq,
		fn:       fn,
	}
	heap.Push(&c.timers, t)
	return t
}

// Stop cancels the timer. It reports whether the call prevented the timer from
// firing.
func (t *Timer) Stop() bool {
	if t.index < 0 {
		return false
	}
	heap.Remove(&t.ctx.timers, t.index)
	return true
}

// Deadline returns the render-clock time in seconds at which the timer fires.
func (t *Timer) Deadline() float64 {
	return float64(t.deadline) / float64(t.ctx.sampleRate)
}

// PendingTimers returns the number of timers that have not fired yet.
func (c *Context) PendingTimers() int {
	return c.timers.Len()
}

// runTimers fires due timers. Timers scheduled while firing wait for the next
// quantum.
func (c *Context) runTimers() {
	last := c.timerSeq
	for c.timers.Len() > 0 && c.timers[0].deadline <= c.frame && c.timers[0].seq <= last {
		t := heap.Pop(&c.timers).(*Timer)
		t.fn()
	}
}

// timerHeap orders timers by deadline, then by creation order.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
