package commands

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/haivivi/tonewave/pkg/synth"
	"github.com/haivivi/tonewave/pkg/synth/capture"
)

var micDir string

// newScoreEngine builds an engine for offline playback. With a mic directory,
// a mic event for id plays dir/<id>.wav; without one, mic events are denied.
func newScoreEngine(cfg synth.Config, emit synth.Emitter) (*synth.Engine, error) {
	opts := []synth.Option{
		synth.WithLogger(slog.Default().With("component", "synth")),
		synth.WithEmitter(emit),
	}
	if micDir != "" {
		opts = append(opts, synth.WithAcquirer(&capture.WAVAcquirer{
			Rate: cfg.SampleRate,
			Open: func(id string) (io.ReadSeeker, error) {
				return os.Open(filepath.Join(micDir, id+".wav"))
			},
		}))
	}
	return synth.New(cfg, opts...)
}
