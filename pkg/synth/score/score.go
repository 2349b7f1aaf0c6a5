// Package score reads timed event scripts and plays them through a
// synth.Engine on its render clock.
//
// A score is YAML:
//
//	duration: 2
//	events:
//	  - at: 0
//	    press: {id: A4, frequency: 440, attack: 0.05, shape: sawtooth}
//	  - at: 0.5
//	    sample: {kind: spectrum, voices: [A4]}
//	  - at: 1
//	    release: {id: A4, release: 0.3}
//
// Each event carries exactly one action: press, release, mic, sample or tick.
// Melodies written in note names expand into press and release events; see
// Melody.
package score

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/haivivi/tonewave/pkg/audio/graph"
	"github.com/haivivi/tonewave/pkg/synth"
)

// DefaultTail is how long a score without a duration keeps rendering after
// its last event.
const DefaultTail = 1.0

// ErrInvalid is returned for scores that parse but cannot be played.
var ErrInvalid = errors.New("score: invalid")

// Score is a list of timed events.
type Score struct {
	// Duration is the total render time in seconds. Zero means the last event
	// plus DefaultTail.
	Duration float64 `yaml:"duration,omitempty"`
	Events   []Event `yaml:"events,omitempty"`

	// Tempo sets the beat length of Melodies, 120 bpm by default.
	Tempo    *Tempo   `yaml:"tempo,omitempty"`
	Melodies []Melody `yaml:"melodies,omitempty"`
}

// Event is one action at a point on the render clock.
type Event struct {
	At float64 `yaml:"at"`

	Press   *Press   `yaml:"press,omitempty"`
	Release *Release `yaml:"release,omitempty"`
	Mic     *Mic     `yaml:"mic,omitempty"`
	Sample  *Sample  `yaml:"sample,omitempty"`
	Tick    *Tick    `yaml:"tick,omitempty"`
}

// Press starts an oscillator voice.
type Press struct {
	ID        synth.VoiceID        `yaml:"id"`
	Frequency float64              `yaml:"frequency"`
	Attack    float64              `yaml:"attack,omitempty"`
	Shape     graph.OscillatorType `yaml:"shape,omitempty"`
}

// Release releases a voice by id.
type Release struct {
	ID      synth.VoiceID `yaml:"id"`
	Release float64       `yaml:"release,omitempty"`
}

// Mic starts a captured voice through the engine's acquirer.
type Mic struct {
	ID     synth.VoiceID `yaml:"id"`
	Attack float64       `yaml:"attack,omitempty"`
}

// Sample reads one frame per voice. An empty Voices samples every active
// voice.
type Sample struct {
	Kind   synth.FrameKind `yaml:"kind"`
	Voices []synth.VoiceID `yaml:"voices,omitempty"`
}

// Tick runs one engine cadence tick.
type Tick struct{}

// Load reads a score file.
func Load(path string) (*Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a score, expands its melodies into events and validates it.
// Unknown keys are errors.
func Parse(r io.Reader) (*Score, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Score
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty score", ErrInvalid)
		}
		return nil, fmt.Errorf("score: %w", err)
	}
	if err := s.expand(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks event times and actions.
func (s *Score) Validate() error {
	if s.Duration < 0 || math.IsNaN(s.Duration) || math.IsInf(s.Duration, 0) {
		return fmt.Errorf("%w: duration %v", ErrInvalid, s.Duration)
	}
	for i, ev := range s.Events {
		if ev.At < 0 || math.IsNaN(ev.At) || math.IsInf(ev.At, 0) {
			return fmt.Errorf("%w: event %d: time %v", ErrInvalid, i, ev.At)
		}
		if s.Duration > 0 && ev.At > s.Duration {
			return fmt.Errorf("%w: event %d at %v is past the end %v", ErrInvalid, i, ev.At, s.Duration)
		}
		if n := ev.actions(); n != 1 {
			return fmt.Errorf("%w: event %d has %d actions, want 1", ErrInvalid, i, n)
		}
		switch {
		case ev.Press != nil:
			if ev.Press.ID == "" {
				return fmt.Errorf("%w: event %d: press without id", ErrInvalid, i)
			}
			if !(ev.Press.Frequency > 0) {
				return fmt.Errorf("%w: event %d: frequency %v", ErrInvalid, i, ev.Press.Frequency)
			}
		case ev.Release != nil:
			if ev.Release.ID == "" {
				return fmt.Errorf("%w: event %d: release without id", ErrInvalid, i)
			}
		case ev.Mic != nil:
			if ev.Mic.ID == "" {
				return fmt.Errorf("%w: event %d: mic without id", ErrInvalid, i)
			}
		}
	}
	return nil
}

// End returns the render time at which the score stops.
func (s *Score) End() float64 {
	if s.Duration > 0 {
		return s.Duration
	}
	var last float64
	for _, ev := range s.Events {
		last = max(last, ev.At)
	}
	return last + DefaultTail
}

// Sorted returns the events ordered by time. Events at the same time keep
// their file order.
func (s *Score) Sorted() []Event {
	out := append([]Event(nil), s.Events...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At < out[j].At })
	return out
}

func (ev *Event) actions() int {
	n := 0
	for _, set := range []bool{ev.Press != nil, ev.Release != nil, ev.Mic != nil, ev.Sample != nil, ev.Tick != nil} {
		if set {
			n++
		}
	}
	return n
}

// Name returns the action name of the event.
func (ev *Event) Name() string {
	switch {
	case ev.Press != nil:
		return "press"
	case ev.Release != nil:
		return "release"
	case ev.Mic != nil:
		return "mic"
	case ev.Sample != nil:
		return "sample"
	case ev.Tick != nil:
		return "tick"
	}
	return ""
}
