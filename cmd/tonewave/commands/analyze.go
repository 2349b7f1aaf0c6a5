package commands

import (
	"math"

	"github.com/spf13/cobra"

	"github.com/haivivi/tonewave/pkg/synth"
	"github.com/haivivi/tonewave/pkg/synth/offload"
	"github.com/haivivi/tonewave/pkg/synth/score"
)

var analyzeData bool

type frameReport struct {
	At     float64         `json:"at" yaml:"at"`
	ID     synth.VoiceID   `json:"id" yaml:"id"`
	Handle string          `json:"handle" yaml:"handle"`
	Kind   synth.FrameKind `json:"kind" yaml:"kind"`

	// Peak is the largest absolute sample of a waveform or the loudest bin of
	// a spectrum in dB.
	Peak float64 `json:"peak" yaml:"peak"`
	RMS  float64 `json:"rms,omitempty" yaml:"rms,omitempty"`
	Hz   float64 `json:"hz,omitempty" yaml:"hz,omitempty"`

	Data []float32 `json:"data,omitempty" yaml:"data,omitempty"`
}

type analysis struct {
	Score         string        `json:"score" yaml:"score"`
	SampleRate    int           `json:"sampleRate" yaml:"sample_rate"`
	TapResolution int           `json:"tapResolution" yaml:"tap_resolution"`
	Duration      float64       `json:"duration" yaml:"duration"`
	Frames        []frameReport `json:"frames" yaml:"frames"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <score.yaml>",
	Short: "Print sampled frames and frequency estimates of a score",
	Long: `Play a score offline and report every sample event: waveform peaks and
RMS, spectrum peaks and the dominant frequency of each voice.

Examples:
  tonewave analyze chord.yaml
  tonewave analyze chord.yaml --format json --data -o frames.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := score.Load(args[0])
		if err != nil {
			return err
		}
		cfg, err := engineConfig()
		if err != nil {
			return err
		}
		// Estimates are computed inline so every spectrum gets one.
		cfg.Offload = false

		e, err := newScoreEngine(cfg, nil)
		if err != nil {
			return err
		}
		defer e.Close()

		report := analysis{
			Score:         args[0],
			SampleRate:    cfg.SampleRate,
			TapResolution: cfg.TapResolution,
			Duration:      s.End(),
			Frames:        []frameReport{},
		}
		p := &score.Player{
			Engine: e,
			OnSample: func(c score.Capture) {
				for _, f := range c.Frames {
					report.Frames = append(report.Frames, summarize(cfg, c.At, f))
				}
			},
		}
		if err := p.Play(cmd.Context(), s); err != nil {
			return err
		}
		return output(report)
	},
}

func summarize(cfg synth.Config, at float64, f synth.SampleFrame) frameReport {
	r := frameReport{At: at, ID: f.VoiceID, Handle: f.Handle, Kind: f.Kind}
	if analyzeData {
		r.Data = f.Samples
	}
	switch f.Kind {
	case synth.TimeDomain:
		var sum float64
		for _, v := range f.Samples {
			a := math.Abs(float64(v))
			r.Peak = max(r.Peak, a)
			sum += a * a
		}
		if len(f.Samples) > 0 {
			r.RMS = math.Sqrt(sum / float64(len(f.Samples)))
		}
	case synth.FrequencyDomain:
		r.Peak = cfg.MinDecibels
		for _, v := range f.Samples {
			r.Peak = max(r.Peak, float64(v))
		}
		res := offload.DominantFrequency(offload.Message{
			SampleRate: cfg.SampleRate,
			FFTSize:    cfg.TapResolution,
			Payload:    []offload.Frame{{ID: string(f.VoiceID), Handle: f.Handle, Kind: f.Kind.String(), Samples: f.Samples}},
		})
		if len(res) == 1 {
			r.Hz = res[0].Frequency
		}
	}
	return r
}

func init() {
	addOutputFlags(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeData, "data", false, "include raw frame data")
	analyzeCmd.Flags().StringVar(&micDir, "mic-dir", "", "directory of <id>.wav files for mic events")
	rootCmd.AddCommand(analyzeCmd)
}
