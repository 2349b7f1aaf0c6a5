package synth

import (
	"fmt"

	"github.com/haivivi/tonewave/pkg/audio/graph"
)

// Config configures an Engine.
type Config struct {
	// SampleRate is the render clock rate in Hz. It cannot change once the
	// engine is built.
	SampleRate int `json:"sampleRate" yaml:"sample_rate"`

	// TapResolution is the analyser FFT size, a power of two in [32, 32768].
	// Spectra have TapResolution/2 bins.
	TapResolution int `json:"tapResolution" yaml:"tap_resolution"`

	// Smoothing damps successive spectrum reads, in [0, 1].
	Smoothing float64 `json:"smoothing" yaml:"smoothing"`

	// MinDecibels and MaxDecibels clamp spectrum values.
	MinDecibels float64 `json:"minDecibels" yaml:"min_decibels"`
	MaxDecibels float64 `json:"maxDecibels" yaml:"max_decibels"`

	// Broadcast samples every active voice on each cadence tick, in addition
	// to explicit requests.
	Broadcast bool `json:"broadcast" yaml:"broadcast"`

	// Offload enables the frequency-estimate worker.
	Offload bool `json:"offload" yaml:"offload"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:    48000,
		TapResolution: 2048,
		Smoothing:     0.8,
		MinDecibels:   -100,
		MaxDecibels:   -30,
		Offload:       true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("synth: invalid sample rate %d", c.SampleRate)
	}
	if err := c.Analyser().Validate(); err != nil {
		return fmt.Errorf("synth: %w", err)
	}
	return nil
}

// Analyser returns the tap configuration.
func (c Config) Analyser() graph.AnalyserConfig {
	return graph.AnalyserConfig{
		FFTSize:     c.TapResolution,
		Smoothing:   c.Smoothing,
		MinDecibels: c.MinDecibels,
		MaxDecibels: c.MaxDecibels,
	}
}
