package commands

import (
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/haivivi/tonewave/pkg/cli"
	"github.com/haivivi/tonewave/pkg/synth"
	"github.com/haivivi/tonewave/pkg/synth/score"
)

var monitorFrameRate int

// scopeView holds the latest broadcast frames per voice instance. Frames are
// keyed by handle so a re-pressed id never shows its predecessor's data.
type scopeView struct {
	cfg synth.Config

	mu        sync.Mutex
	waveforms map[string][]float32
	spectra   map[string][]float32
	handles   map[synth.VoiceID]string
	estimates map[synth.VoiceID]estimate
}

// estimate remembers which voice instance was current when it arrived.
type estimate struct {
	handle string
	hz     float64
}

func newScopeView(cfg synth.Config) *scopeView {
	return &scopeView{
		cfg:       cfg,
		waveforms: make(map[string][]float32),
		spectra:   make(map[string][]float32),
		handles:   make(map[synth.VoiceID]string),
		estimates: make(map[synth.VoiceID]estimate),
	}
}

func (v *scopeView) emit(msg synth.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch p := msg.Payload.(type) {
	case *synth.Waveforms:
		for _, e := range p.Entries {
			v.waveforms[e.Handle] = e.Data
			v.handles[e.ID] = e.Handle
		}
	case *synth.Spectra:
		for _, e := range p.Entries {
			v.spectra[e.Handle] = e.Data
			v.handles[e.ID] = e.Handle
		}
	case *synth.FrequencyEstimate:
		v.estimates[p.ID] = estimate{handle: v.handles[p.ID], hz: p.Value}
	}
}

// prune drops everything that belongs to voices no longer live.
func (v *scopeView) prune(voices []synth.VoiceInfo) {
	handles := make(map[string]bool, len(voices))
	ids := make(map[synth.VoiceID]bool, len(voices))
	for _, info := range voices {
		handles[info.Handle] = true
		ids[info.ID] = true
	}
	for h := range v.waveforms {
		if !handles[h] {
			delete(v.waveforms, h)
		}
	}
	for h := range v.spectra {
		if !handles[h] {
			delete(v.spectra, h)
		}
	}
	for id := range v.handles {
		if !ids[id] {
			delete(v.handles, id)
		}
	}
	for id := range v.estimates {
		if !ids[id] {
			delete(v.estimates, id)
		}
	}
}

// lines renders one block per voice: a status line, a scope row and a
// spectrum row.
func (v *scopeView) lines(voices []synth.VoiceInfo, width int) []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prune(voices)
	if len(voices) == 0 {
		return []string{"(no voices)"}
	}
	var out []string
	for _, info := range voices {
		est := "-"
		if e, ok := v.estimates[info.ID]; ok && e.handle == info.Handle {
			est = cli.FormatHz(e.hz)
		}
		out = append(out,
			fmt.Sprintf("%-8s %-10s amp %.2f  est %s", info.ID, info.State, info.Amplitude, est),
			"~ "+cli.Scope(v.waveforms[info.Handle], width-2),
			"# "+cli.Bars(v.levels(v.spectra[info.Handle]), width-2),
		)
	}
	return out
}

// levels maps decibels onto [0, 255] between the configured bounds.
func (v *scopeView) levels(db []float32) []byte {
	lo, hi := v.cfg.MinDecibels, v.cfg.MaxDecibels
	out := make([]byte, len(db))
	for i, d := range db {
		x := (float64(d) - lo) / (hi - lo)
		out[i] = byte(max(0, min(1, x)) * 255)
	}
	return out
}

var monitorCmd = &cobra.Command{
	Use:   "monitor <score.yaml>",
	Short: "Play a score live with waveform and spectrum bars",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := score.Load(args[0])
		if err != nil {
			return err
		}
		cfg, err := engineConfig()
		if err != nil {
			return err
		}
		cfg.Broadcast = true

		logs := cli.NewLogWriter(100)
		setupLogging(logs)

		view := newScopeView(cfg)
		e, err := newScoreEngine(cfg, view.emit)
		if err != nil {
			return err
		}
		defer e.Close()

		styles := cli.NewStyles(cli.DefaultTheme)
		draw := func(now float64) {
			width, height, err := term.GetSize(os.Stdout.Fd())
			if err != nil {
				width, height = 80, 24
			}
			frame := cli.Frame{
				Styles: styles,
				Title:  "tonewave monitor",
				Status: cli.FormatClock(now) + " / " + cli.FormatClock(s.End()),
				Sections: []cli.Section{
					{Label: "voices", Content: func() []string { return view.lines(e.Voices(), width-4) }},
					{Label: "log", Content: logs.Lines},
				},
				Help: "ctrl+c to stop",
			}
			fmt.Fprint(os.Stdout, "\033[H\033[2J", frame.Render(width, height-1))
		}

		p := &score.Player{
			Engine:    e,
			FrameRate: monitorFrameRate,
			Realtime:  true,
			OnTick:    draw,
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		err = p.Play(ctx, s)
		fmt.Fprintln(os.Stdout)
		return err
	},
}

func init() {
	monitorCmd.Flags().IntVar(&monitorFrameRate, "frame-rate", 30, "redraws per second")
	monitorCmd.Flags().StringVar(&micDir, "mic-dir", "", "directory of <id>.wav files for mic events")
	rootCmd.AddCommand(monitorCmd)
}
