package synth

import (
	"encoding/json"
	"fmt"

	"github.com/haivivi/tonewave/pkg/audio/graph"
)

// Ensure all payload types implement Event.
var (
	_ Event = (*NotePress)(nil)
	_ Event = (*NoteRelease)(nil)
	_ Event = (*ActivateMic)(nil)
	_ Event = (*RequestWaveforms)(nil)
	_ Event = (*RequestSpectra)(nil)
	_ Event = (*MicGrant)(nil)
	_ Event = (*MicDeny)(nil)
	_ Event = (*Ready)(nil)
	_ Event = (*VoiceCreated)(nil)
	_ Event = (*Waveforms)(nil)
	_ Event = (*Spectra)(nil)
	_ Event = (*FrequencyEstimate)(nil)
	_ Event = (*Error)(nil)
)

// Message types.
const (
	TypeNotePress         = "notePress"
	TypeNoteRelease       = "noteRelease"
	TypeActivateMic       = "activateMic"
	TypeRequestWaveforms  = "requestWaveforms"
	TypeRequestSpectra    = "requestSpectra"
	TypeMicGrant          = "micGrant"
	TypeMicDeny           = "micDeny"
	TypeReady             = "ready"
	TypeVoiceCreated      = "voiceCreated"
	TypeWaveforms         = "waveforms"
	TypeSpectra           = "spectra"
	TypeFrequencyEstimate = "frequencyEstimate"
	TypeError             = "error"
)

// Error kinds carried by Error messages.
const (
	ErrorKindAcquisitionDenied = "acquisitionDenied"
	ErrorKindBadMessage        = "badMessage"
)

// Event is the payload of a Message.
type Event interface {
	eventType() string
}

// Message is the tagged envelope exchanged with the UI:
//
//	{"type": "notePress", "payload": {...}}
type Message struct {
	Type    string `json:"type"`
	Payload Event  `json:"payload"`
}

// NewMessage wraps ev in its envelope.
func NewMessage(ev Event) Message {
	return Message{Type: ev.eventType(), Payload: ev}
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(b []byte) error {
	var v struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	var ev Event
	switch v.Type {
	case TypeNotePress:
		ev = new(NotePress)
	case TypeNoteRelease:
		ev = new(NoteRelease)
	case TypeActivateMic:
		ev = new(ActivateMic)
	case TypeRequestWaveforms:
		ev = new(RequestWaveforms)
	case TypeRequestSpectra:
		ev = new(RequestSpectra)
	case TypeMicGrant:
		ev = new(MicGrant)
	case TypeMicDeny:
		ev = new(MicDeny)
	case TypeReady:
		ev = new(Ready)
	case TypeVoiceCreated:
		ev = new(VoiceCreated)
	case TypeWaveforms:
		ev = new(Waveforms)
	case TypeSpectra:
		ev = new(Spectra)
	case TypeFrequencyEstimate:
		ev = new(FrequencyEstimate)
	case TypeError:
		ev = new(Error)
	default:
		return fmt.Errorf("synth: unknown message type %q", v.Type)
	}
	if len(v.Payload) > 0 && string(v.Payload) != "null" {
		if err := json.Unmarshal(v.Payload, ev); err != nil {
			return fmt.Errorf("synth: %s payload: %w", v.Type, err)
		}
	}
	*m = Message{Type: v.Type, Payload: ev}
	return nil
}

// NotePress creates or replaces an oscillator voice.
type NotePress struct {
	ID        VoiceID              `json:"id"`
	Frequency float64              `json:"frequency"`
	Attack    float64              `json:"attack"`
	WaveShape graph.OscillatorType `json:"waveShape"`
}

func (*NotePress) eventType() string { return TypeNotePress }

// NoteRelease starts the release of a voice, by id or embedded handle.
type NoteRelease struct {
	ID      VoiceID `json:"id,omitempty"`
	Handle  string  `json:"handle,omitempty"`
	Release float64 `json:"release"`
}

func (*NoteRelease) eventType() string { return TypeNoteRelease }

// Ref returns the voice reference of the release.
func (r *NoteRelease) Ref() VoiceRef {
	return VoiceRef{ID: r.ID, Handle: r.Handle}
}

// ActivateMic starts acquiring a capture stream for id.
type ActivateMic struct {
	ID     VoiceID `json:"id"`
	Attack float64 `json:"attack,omitempty"`
}

func (*ActivateMic) eventType() string { return TypeActivateMic }

// RequestWaveforms asks for one time-domain frame per voice on the next tick.
type RequestWaveforms struct {
	Voices []VoiceRef `json:"voices"`
}

func (*RequestWaveforms) eventType() string { return TypeRequestWaveforms }

// RequestSpectra asks for one frequency-domain frame per voice on the next
// tick.
type RequestSpectra struct {
	Voices []VoiceRef `json:"voices"`
}

func (*RequestSpectra) eventType() string { return TypeRequestSpectra }

// MicGrant answers a pending activateMic: the browser will stream L16 at
// SampleRate.
type MicGrant struct {
	ID         VoiceID `json:"id"`
	SampleRate int     `json:"sampleRate"`
}

func (*MicGrant) eventType() string { return TypeMicGrant }

// MicDeny refuses a pending activateMic.
type MicDeny struct {
	ID VoiceID `json:"id"`
}

func (*MicDeny) eventType() string { return TypeMicDeny }

// Ready opens a session: rendered audio follows as binary frames in Format.
type Ready struct {
	Session    string `json:"session"`
	SampleRate int    `json:"sampleRate"`
	Format     string `json:"format"`
}

func (*Ready) eventType() string { return TypeReady }

// VoiceCreated reports the handle of a new voice.
type VoiceCreated struct {
	ID     VoiceID `json:"id"`
	Handle string  `json:"handle"`
}

func (*VoiceCreated) eventType() string { return TypeVoiceCreated }

// SampleEntry is one voice's frame in a Waveforms or Spectra message.
type SampleEntry struct {
	ID     VoiceID   `json:"id"`
	Handle string    `json:"handle,omitempty"`
	Data   []float32 `json:"data"`
}

// Waveforms carries time-domain frames.
type Waveforms struct {
	Entries []SampleEntry `json:"entries"`
}

func (*Waveforms) eventType() string { return TypeWaveforms }

// Spectra carries frequency-domain frames in decibels.
type Spectra struct {
	Entries []SampleEntry `json:"entries"`
}

func (*Spectra) eventType() string { return TypeSpectra }

// FrequencyEstimate reports the dominant frequency of a voice in Hz.
type FrequencyEstimate struct {
	ID    VoiceID `json:"id"`
	Value float64 `json:"value"`
}

func (*FrequencyEstimate) eventType() string { return TypeFrequencyEstimate }

// Error reports a failed operation to the UI.
type Error struct {
	Kind    string  `json:"kind"`
	ID      VoiceID `json:"id,omitempty"`
	Message string  `json:"message"`
}

func (*Error) eventType() string { return TypeError }

func entries(frames []SampleFrame) []SampleEntry {
	out := make([]SampleEntry, len(frames))
	for i, f := range frames {
		out[i] = SampleEntry{ID: f.VoiceID, Handle: f.Handle, Data: f.Samples}
	}
	return out
}
