package score

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/haivivi/tonewave/pkg/audio/graph"
	"github.com/haivivi/tonewave/pkg/synth"
)

// Tempo converts beats to seconds.
type Tempo struct {
	BPM float64 `yaml:"bpm"`
}

// Seconds returns the duration of beats at t.
func (t Tempo) Seconds(beats float64) float64 {
	return beats * 60 / t.BPM
}

// Melody is a monophonic line written in note names. It expands into press
// and release events on one voice id, so each note replaces the previous one.
//
//	melodies:
//	  - id: lead
//	    start: 0.5
//	    notes: "C4 D4 E4:2 R F#4:0.5 Bb3:1.5"
//
// A note is a name with an optional ":beats" suffix, one beat by default. R
// is a rest.
type Melody struct {
	ID      synth.VoiceID        `yaml:"id"`
	Start   float64              `yaml:"start,omitempty"`
	Shape   graph.OscillatorType `yaml:"shape,omitempty"`
	Attack  float64              `yaml:"attack,omitempty"`
	Release float64              `yaml:"release,omitempty"`
	Notes   string               `yaml:"notes"`
}

// BeatNote is one parsed note. Frequency is zero for a rest.
type BeatNote struct {
	Frequency float64
	Beats     float64
}

var semitones = map[byte]int{'C': -9, 'D': -7, 'E': -5, 'F': -4, 'G': -2, 'A': 0, 'B': 2}

// NoteFrequency returns the equal-tempered frequency of a note name such as
// "A4", "F#3" or "Bb5", tuned to A4 = 440 Hz.
func NoteFrequency(name string) (float64, error) {
	if len(name) < 2 {
		return 0, fmt.Errorf("score: bad note %q", name)
	}
	st, ok := semitones[name[0]]
	if !ok {
		return 0, fmt.Errorf("score: bad note %q", name)
	}
	rest := name[1:]
	switch rest[0] {
	case '#':
		st++
		rest = rest[1:]
	case 'b':
		st--
		rest = rest[1:]
	}
	octave, err := strconv.Atoi(rest)
	if err != nil || octave < 0 || octave > 9 {
		return 0, fmt.Errorf("score: bad octave in note %q", name)
	}
	st += (octave - 4) * 12
	return 440 * math.Pow(2, float64(st)/12), nil
}

// ParseNotes parses a space-separated note line.
func ParseNotes(line string) ([]BeatNote, error) {
	var notes []BeatNote
	for _, tok := range strings.Fields(line) {
		name, beatsText, hasBeats := strings.Cut(tok, ":")
		n := BeatNote{Beats: 1}
		if hasBeats {
			b, err := strconv.ParseFloat(beatsText, 64)
			if err != nil || !(b > 0) || math.IsInf(b, 0) {
				return nil, fmt.Errorf("score: bad beats in %q", tok)
			}
			n.Beats = b
		}
		if name != "R" {
			f, err := NoteFrequency(name)
			if err != nil {
				return nil, err
			}
			n.Frequency = f
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// events expands m at tempo. Each note is pressed at its start and released
// so that the release ends with the note.
func (m *Melody) events(tempo Tempo) ([]Event, error) {
	if m.ID == "" {
		return nil, fmt.Errorf("melody without id")
	}
	notes, err := ParseNotes(m.Notes)
	if err != nil {
		return nil, err
	}
	var out []Event
	at := m.Start
	for _, n := range notes {
		dur := tempo.Seconds(n.Beats)
		if n.Frequency > 0 {
			release := min(m.Release, dur)
			out = append(out,
				Event{At: at, Press: &Press{ID: m.ID, Frequency: n.Frequency, Attack: m.Attack, Shape: m.Shape}},
				Event{At: at + dur - release, Release: &Release{ID: m.ID, Release: release}},
			)
		}
		at += dur
	}
	return out, nil
}

// expand turns melodies into events.
func (s *Score) expand() error {
	if len(s.Melodies) == 0 {
		return nil
	}
	tempo := Tempo{BPM: 120}
	if s.Tempo != nil {
		tempo = *s.Tempo
	}
	if !(tempo.BPM > 0) || math.IsInf(tempo.BPM, 0) {
		return fmt.Errorf("%w: tempo %v bpm", ErrInvalid, tempo.BPM)
	}
	for i := range s.Melodies {
		evs, err := s.Melodies[i].events(tempo)
		if err != nil {
			return fmt.Errorf("%w: melody %d: %w", ErrInvalid, i, err)
		}
		s.Events = append(s.Events, evs...)
	}
	s.Melodies = nil
	return nil
}
