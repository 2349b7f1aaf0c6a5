package commands

import (
	"strings"
	"testing"

	"github.com/haivivi/tonewave/pkg/synth"
)

func TestScopeViewLevels(t *testing.T) {
	view := newScopeView(synth.DefaultConfig())
	tests := []struct {
		db   float32
		want byte
	}{
		{-120, 0},
		{-100, 0},
		{-65, 127},
		{-30, 255},
		{0, 255},
	}
	for _, tt := range tests {
		if got := view.levels([]float32{tt.db})[0]; got != tt.want {
			t.Errorf("levels(%v) = %d, want %d", tt.db, got, tt.want)
		}
	}
}

func TestScopeViewLines(t *testing.T) {
	view := newScopeView(synth.DefaultConfig())
	if got := view.lines(nil, 20); len(got) != 1 || got[0] != "(no voices)" {
		t.Fatalf("empty = %q", got)
	}

	a4 := synth.VoiceInfo{ID: "A4", Handle: "h1", State: synth.Sustaining, Amplitude: 0.5}
	view.emit(synth.NewMessage(&synth.Waveforms{Entries: []synth.SampleEntry{
		{ID: "A4", Handle: "h1", Data: []float32{1, -1, 1, -1}},
	}}))
	view.emit(synth.NewMessage(&synth.Spectra{Entries: []synth.SampleEntry{
		{ID: "A4", Handle: "h1", Data: []float32{-100, -30, -100, -100}},
	}}))
	view.emit(synth.NewMessage(&synth.FrequencyEstimate{ID: "A4", Value: 440}))

	tests := []struct {
		name   string
		voices []synth.VoiceInfo
		want   []string
	}{
		{
			name:   "live voice",
			voices: []synth.VoiceInfo{a4},
			want: []string{
				"A4       sustaining amp 0.50  est 440.0 Hz",
				"~ ████",
				"#  █  ",
			},
		},
		{
			name:   "re-pressed id",
			voices: []synth.VoiceInfo{{ID: "A4", Handle: "h2", State: synth.Attacking}},
			want: []string{
				"A4       attacking  amp 0.00  est -",
				"~ ",
				"# ",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := view.lines(tt.voices, 6)
			if strings.Join(got, "\n") != strings.Join(tt.want, "\n") {
				t.Fatalf("lines:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(tt.want, "\n"))
			}
		})
	}
}

func TestScopeViewPrunesGoneVoices(t *testing.T) {
	view := newScopeView(synth.DefaultConfig())
	view.emit(synth.NewMessage(&synth.Waveforms{Entries: []synth.SampleEntry{
		{ID: "A4", Handle: "h1", Data: []float32{0.5}},
		{ID: "C5", Handle: "h2", Data: []float32{0.5}},
	}}))
	view.emit(synth.NewMessage(&synth.FrequencyEstimate{ID: "A4", Value: 440}))

	view.lines([]synth.VoiceInfo{{ID: "C5", Handle: "h2"}}, 10)
	if len(view.waveforms) != 1 || view.waveforms["h2"] == nil {
		t.Fatalf("waveforms = %v", view.waveforms)
	}
	if len(view.estimates) != 0 || len(view.handles) != 1 {
		t.Fatalf("estimates %v, handles %v", view.estimates, view.handles)
	}
}
