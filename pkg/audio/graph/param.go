package graph

import (
	"math"
	"slices"
)

type eventKind int

const (
	eventSetValue eventKind = iota
	eventLinearRamp
)

type paramEvent struct {
	kind  eventKind
	value float64
	time  float64
}

// Param is an automatable node parameter. Values are scheduled on the render
// clock: SetValueAtTime jumps, LinearRampToValueAtTime ramps from the previous
// event to the target.
type Param struct {
	ctx      *Context
	value    float64 // value before the first event
	anchor   float64 // time value took effect
	events   []paramEvent
	min, max float64
}

func newParam(ctx *Context, value, lo, hi float64) *Param {
	return &Param{ctx: ctx, value: value, min: lo, max: hi}
}

// Context returns the context whose clock drives the automation.
func (p *Param) Context() *Context {
	return p.ctx
}

// Value returns the parameter value at the current render time.
func (p *Param) Value() float64 {
	return p.ValueAt(p.ctx.CurrentTime())
}

// SetValue sets the value immediately and drops all scheduled events.
func (p *Param) SetValue(v float64) {
	p.value = p.clamp(v)
	p.anchor = p.ctx.CurrentTime()
	p.events = p.events[:0]
}

// SetValueAtTime schedules a jump to v at time t.
func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: eventSetValue, value: p.clamp(v), time: t})
}

// LinearRampToValueAtTime schedules a linear ramp ending at v at time t. The
// ramp starts at the previous event, or at the current value if there is none.
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: eventLinearRamp, value: p.clamp(v), time: t})
}

// CancelScheduledValues removes every event at or after t.
func (p *Param) CancelScheduledValues(t float64) {
	p.events = slices.DeleteFunc(p.events, func(e paramEvent) bool { return e.time >= t })
}

// CancelAndHoldAtTime removes every event after t and holds the value the
// automation would have had at t.
func (p *Param) CancelAndHoldAtTime(t float64) {
	v := p.ValueAt(t)
	p.events = append(p.events[:0], paramEvent{kind: eventSetValue, value: v, time: t})
}

// ScheduledEvents returns the number of pending automation events.
func (p *Param) ScheduledEvents() int {
	return len(p.events)
}

// ValueAt evaluates the automation timeline at time t.
func (p *Param) ValueAt(t float64) float64 {
	prevValue, prevTime := p.value, p.anchor
	for _, e := range p.events {
		if e.time > t {
			if e.kind == eventLinearRamp && e.time > prevTime {
				frac := (t - prevTime) / (e.time - prevTime)
				return prevValue + (e.value-prevValue)*max(frac, 0)
			}
			return prevValue
		}
		prevValue, prevTime = e.value, e.time
	}
	return prevValue
}

func (p *Param) insert(e paramEvent) {
	// Events at equal times keep insertion order.
	i, _ := slices.BinarySearchFunc(p.events, e.time, func(a paramEvent, t float64) int {
		if a.time <= t {
			return -1
		}
		return 1
	})
	p.events = slices.Insert(p.events, i, e)
}

func (p *Param) clamp(v float64) float64 {
	if math.IsNaN(v) {
		return p.value
	}
	return min(max(v, p.min), p.max)
}

// fill writes the per-frame parameter values for the quantum starting at
// frame into dst.
func (p *Param) fill(dst []float64, frame int64) {
	sr := float64(p.ctx.sampleRate)
	if len(p.events) == 0 {
		for i := range dst {
			dst[i] = p.value
		}
		return
	}
	for i := range dst {
		dst[i] = p.ValueAt(float64(frame+int64(i)) / sr)
	}
	p.compact(float64(frame+int64(len(dst))) / sr)
}

// compact folds events that are fully in the past into the base value so the
// timeline stays short.
func (p *Param) compact(now float64) {
	n := 0
	for n < len(p.events) && p.events[n].time <= now {
		n++
	}
	if n == 0 {
		return
	}
	last := p.events[n-1]
	p.value, p.anchor = last.value, last.time
	p.events = slices.Delete(p.events, 0, n)
}
