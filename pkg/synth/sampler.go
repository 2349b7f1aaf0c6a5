package synth

import (
	"fmt"
	"strings"
)

// FrameKind selects the domain of a sample frame.
type FrameKind int

const (
	TimeDomain FrameKind = iota
	FrequencyDomain
)

func (k FrameKind) String() string {
	switch k {
	case TimeDomain:
		return "time"
	case FrequencyDomain:
		return "frequency"
	default:
		return fmt.Sprintf("FrameKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k FrameKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *FrameKind) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "time", "waveform":
		*k = TimeDomain
	case "frequency", "spectrum":
		*k = FrequencyDomain
	default:
		return fmt.Errorf("synth: unknown frame kind %q", b)
	}
	return nil
}

// SampleFrame is one analyser snapshot of one voice.
type SampleFrame struct {
	VoiceID VoiceID   `json:"id" yaml:"id"`
	Handle  string    `json:"handle" yaml:"handle"`
	Kind    FrameKind `json:"kind" yaml:"kind"`
	Samples []float32 `json:"data" yaml:"data,flow"`
}

// Sampler reads voice taps. It never changes voice state.
type Sampler struct {
	reg *Registry
}

// NewSampler creates a sampler over reg.
func NewSampler(reg *Registry) *Sampler {
	return &Sampler{reg: reg}
}

// SampleAll reads one frame of kind from every active voice. With no voices it
// returns an empty slice.
func (s *Sampler) SampleAll(kind FrameKind) []SampleFrame {
	voices := s.reg.ActiveVoices()
	frames := make([]SampleFrame, 0, len(voices))
	for _, v := range voices {
		frames = append(frames, sampleVoice(v, kind))
	}
	return frames
}

// Sample reads one frame of kind for each ref. Refs that do not resolve to a
// live voice are skipped.
func (s *Sampler) Sample(kind FrameKind, refs []VoiceRef) []SampleFrame {
	frames := make([]SampleFrame, 0, len(refs))
	for _, ref := range refs {
		v, err := s.reg.Lookup(ref)
		if err != nil {
			continue
		}
		frames = append(frames, sampleVoice(v, kind))
	}
	return frames
}

func sampleVoice(v *Voice, kind FrameKind) SampleFrame {
	tap := v.Tap()
	f := SampleFrame{VoiceID: v.ID, Handle: v.Handle, Kind: kind}
	switch kind {
	case FrequencyDomain:
		f.Samples = make([]float32, tap.FrequencyBinCount())
		tap.FloatFrequencyData(f.Samples)
	default:
		f.Samples = make([]float32, tap.FFTSize())
		tap.FloatTimeDomainData(f.Samples)
	}
	return f
}
