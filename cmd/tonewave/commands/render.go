package commands

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/cobra"

	"github.com/haivivi/tonewave/pkg/audio/pcm"
	"github.com/haivivi/tonewave/pkg/cli"
	"github.com/haivivi/tonewave/pkg/synth/score"
)

var (
	renderOut string
	renderRaw bool
)

var renderCmd = &cobra.Command{
	Use:   "render <score.yaml>",
	Short: "Render a score to a WAV file",
	Long: `Play a score through the engine as fast as possible and write the mix
as a 16-bit mono WAV at the engine sample rate. With --raw the file holds
headerless little-endian L16 instead, which needs a 16, 24, 44.1 or 48 kHz
engine.

Examples:
  tonewave render chord.yaml -o chord.wav
  tonewave render chord.yaml --raw -o chord.pcm
  tonewave render duet.yaml --mic-dir ./takes -o duet.wav`,
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
		cfg.Offload = false

		e, err := newScoreEngine(cfg, nil)
		if err != nil {
			return err
		}
		defer e.Close()

		f, err := os.Create(renderOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", renderOut, err)
		}
		defer f.Close()

		p := &score.Player{Engine: e}
		var finish func() error
		if renderRaw {
			format, err := pcm.FormatFor(cfg.SampleRate)
			if err != nil {
				return err
			}
			w := pcm.ChunkWriter(f)
			p.Output = func(block []float32) error {
				return w.Write(format.FloatChunk(block))
			}
			finish = func() error { return nil }
		} else {
			enc := wav.NewEncoder(f, cfg.SampleRate, 16, 1, 1)
			buf := &audio.IntBuffer{
				Format:         &audio.Format{NumChannels: 1, SampleRate: cfg.SampleRate},
				SourceBitDepth: 16,
			}
			p.Output = func(block []float32) error {
				buf.Data = toInt16(buf.Data[:0], block)
				return enc.Write(buf)
			}
			finish = enc.Close
		}
		if err := p.Play(cmd.Context(), s); err != nil {
			return err
		}
		if err := finish(); err != nil {
			return fmt.Errorf("finish %s: %w", renderOut, err)
		}

		st, err := f.Stat()
		if err != nil {
			return err
		}
		cli.PrintSuccess("wrote %s (%s, %s)", renderOut, cli.FormatClock(s.End()), cli.FormatBytes(st.Size()))
		return nil
	},
}

// toInt16 scales samples in [-1, 1] to the 16-bit range, clipping the rest.
func toInt16(dst []int, src []float32) []int {
	for _, v := range src {
		v = max(-1, min(1, v))
		dst = append(dst, int(v*32767))
	}
	return dst
}

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "output", "o", "out.wav", "file to write")
	renderCmd.Flags().BoolVar(&renderRaw, "raw", false, "write headerless L16 instead of WAV")
	renderCmd.Flags().StringVar(&micDir, "mic-dir", "", "directory of <id>.wav files for mic events")
	rootCmd.AddCommand(renderCmd)
}
