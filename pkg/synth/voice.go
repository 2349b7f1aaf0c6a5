package synth

import (
	"fmt"

	"github.com/haivivi/tonewave/pkg/audio/graph"
)

// VoiceID is the caller-supplied identity of a voice, such as a note name.
type VoiceID string

// VoiceRef names a voice by id or by handle. A non-empty Handle takes
// precedence and never resolves to a different voice that reused the id.
type VoiceRef struct {
	ID     VoiceID `json:"id,omitempty" yaml:"id,omitempty"`
	Handle string  `json:"handle,omitempty" yaml:"handle,omitempty"`
}

func (r VoiceRef) String() string {
	if r.Handle != "" {
		return fmt.Sprintf("%s#%s", r.ID, r.Handle)
	}
	return string(r.ID)
}

// SourceKind tells generated voices from captured ones.
type SourceKind int

const (
	Generated SourceKind = iota
	Captured
)

func (k SourceKind) String() string {
	if k == Captured {
		return "captured"
	}
	return "generated"
}

// State is the lifecycle position of a voice.
type State int

const (
	Idle State = iota
	Attacking
	Sustaining
	Releasing
	Disposed
)

var stateNames = [...]string{"idle", "attacking", "sustaining", "releasing", "disposed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Voice is one sounding or capturing unit with its own envelope and tap.
type Voice struct {
	ID        VoiceID
	Handle    string
	Kind      SourceKind
	Frequency float64
	Shape     graph.OscillatorType

	graph     *Graph
	epoch     uint64
	attackEnd float64
	releasing bool
	teardown  *graph.Timer
}

// State derives the lifecycle state from the render clock.
func (v *Voice) State() State {
	switch {
	case v.graph.Disposed():
		return Disposed
	case v.releasing:
		return Releasing
	case v.graph.Amplitude.Context().CurrentTime() < v.attackEnd:
		return Attacking
	default:
		return Sustaining
	}
}

// Amplitude returns the envelope gain at the current render time.
func (v *Voice) Amplitude() float64 {
	return v.graph.Amplitude.Gain.Value()
}

// Graph returns the voice routing.
func (v *Voice) Graph() *Graph { return v.graph }

// Tap returns the voice analyser.
func (v *Voice) Tap() *graph.Analyser { return v.graph.Tap }

// Ref returns a reference that resolves to exactly this voice.
func (v *Voice) Ref() VoiceRef {
	return VoiceRef{ID: v.ID, Handle: v.Handle}
}

// Info returns a copy of the observable voice fields.
func (v *Voice) Info() VoiceInfo {
	return VoiceInfo{
		ID:        v.ID,
		Handle:    v.Handle,
		Kind:      v.Kind.String(),
		Frequency: v.Frequency,
		Shape:     v.Shape,
		State:     v.State(),
		Amplitude: v.Amplitude(),
	}
}

// VoiceInfo is a snapshot of a voice, safe to use outside the engine lock.
type VoiceInfo struct {
	ID        VoiceID              `json:"id" yaml:"id"`
	Handle    string               `json:"handle" yaml:"handle"`
	Kind      string               `json:"kind" yaml:"kind"`
	Frequency float64              `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	Shape     graph.OscillatorType `json:"waveShape" yaml:"wave_shape"`
	State     State                `json:"state" yaml:"state"`
	Amplitude float64              `json:"amplitude" yaml:"amplitude"`
}
