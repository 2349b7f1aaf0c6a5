package graph

import (
	"fmt"
	"math"
	"strings"
)

// OscillatorType selects an oscillator waveform.
type OscillatorType int

const (
	Sine OscillatorType = iota
	Square
	Sawtooth
	Triangle
)

var oscillatorNames = [...]string{"sine", "square", "sawtooth", "triangle"}

func (t OscillatorType) String() string {
	if t < 0 || int(t) >= len(oscillatorNames) {
		return fmt.Sprintf("OscillatorType(%d)", int(t))
	}
	return oscillatorNames[t]
}

// ParseOscillatorType parses a waveform name such as "sine" or "sawtooth".
func ParseOscillatorType(s string) (OscillatorType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range oscillatorNames {
		if s == name {
			return OscillatorType(i), nil
		}
	}
	return Sine, fmt.Errorf("graph: unknown oscillator type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t OscillatorType) MarshalText() ([]byte, error) {
	if t < 0 || int(t) >= len(oscillatorNames) {
		return nil, fmt.Errorf("graph: invalid oscillator type %d", int(t))
	}
	return []byte(oscillatorNames[t]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *OscillatorType) UnmarshalText(b []byte) error {
	v, err := ParseOscillatorType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Oscillator is a periodic source node.
type Oscillator struct {
	*node

	// Frequency in Hz.
	Frequency *Param

	typ       OscillatorType
	phase     float64 // cycles, in [0, 1)
	startAt   int64
	stopAt    int64
	started   bool
	freqFrame []float64
}

// NewOscillator creates a stopped oscillator of the given type at 440 Hz.
func (c *Context) NewOscillator(typ OscillatorType) *Oscillator {
	o := &Oscillator{
		typ:       typ,
		stopAt:    math.MaxInt64,
		freqFrame: make([]float64, RenderQuantum),
	}
	nyquist := float64(c.sampleRate) / 2
	o.Frequency = newParam(c, 440, -nyquist, nyquist)
	o.node = newNode(c, o)
	return o
}

// Type returns the waveform.
func (o *Oscillator) Type() OscillatorType { return o.typ }


// Start begins output at render time when. Times in the past start
// immediately.
func (o *Oscillator) Start(when float64) error {
	if o.started {
		return ErrAlreadyStarted
	}
	o.started = true
	o.startAt = o.toFrame(when)
	return nil
}

// Stop ends output at render time when.
func (o *Oscillator) Stop(when float64) {
	o.stopAt = o.toFrame(when)
}

// Playing reports whether the oscillator produces output at the current
// render frame.
func (o *Oscillator) Playing() bool {
	f := o.ctx.frame
	return o.started && f >= o.startAt && f < o.stopAt
}

func (o *Oscillator) toFrame(t float64) int64 {
	return int64(math.Round(max(t, 0) * float64(o.ctx.sampleRate)))
}

func (o *Oscillator) process(_, out []float32, frame int64) {
	if !o.started {
		clear(out)
		return
	}
	o.Frequency.fill(o.freqFrame, frame)
	sr := float64(o.ctx.sampleRate)
	for i := range out {
		f := frame + int64(i)
		if f < o.startAt || f >= o.stopAt {
			out[i] = 0
			continue
		}
		out[i] = float32(waveform(o.typ, o.phase))
		o.phase += o.freqFrame[i] / sr
		o.phase -= math.Floor(o.phase)
	}
}

func waveform(t OscillatorType, phase float64) float64 {
	switch t {
	case Square:
		if phase < 0.5 {
			return 1
		}
		return -1
	case Sawtooth:
		return 2*frac(phase+0.5) - 1
	case Triangle:
		return 1 - 4*math.Abs(frac(phase+0.25)-0.5)
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

func frac(x float64) float64 {
	return x - math.Floor(x)
}
