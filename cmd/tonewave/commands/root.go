package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/tonewave/cmd/tonewave/internal/config"
	"github.com/haivivi/tonewave/pkg/cli"
	"github.com/haivivi/tonewave/pkg/synth"
)

var (
	verbose      bool
	envFile      string
	formatOutput string
	outputFile   string

	globalConfig  *config.Config
	configLoadErr error
)

var rootCmd = &cobra.Command{
	Use:   "tonewave",
	Short: "Synthesizer voice and analysis engine",
	Long: `tonewave - voice and analysis engine for a browser synthesizer.

The engine turns note presses into oscillator voices with linear attack and
release envelopes, samples each voice's waveform and spectrum, and estimates
dominant frequencies off the render path.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/tonewave/config.yaml
  Linux:   ~/.config/tonewave/config.yaml
  Windows: %AppData%/tonewave/config.yaml

TONEWAVE_ADDR, TONEWAVE_SAMPLE_RATE and TONEWAVE_FRAME_RATE override it, and
are read from ./.env when present.

Examples:
  tonewave serve --addr :8080
  tonewave render score.yaml -o out.wav
  tonewave analyze score.yaml --format json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(os.Stderr)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with TONEWAVE_* overrides")
}

// addOutputFlags registers --format and --output on commands that print
// structured results.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&formatOutput, "format", "yaml", "output format: yaml, json")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "write output to file instead of stdout")
}

func output(v any) error {
	format, err := cli.ParseOutputFormat(formatOutput)
	if err != nil {
		return err
	}
	return cli.Output(v, cli.OutputOptions{Format: format, File: outputFile})
}

func initConfig() {
	globalConfig, configLoadErr = nil, nil
	if err := config.LoadEnv(envFile); err != nil {
		configLoadErr = err
		return
	}
	cfg, err := config.Load()
	if err != nil {
		// Reported by commands that need it, so `version` still works.
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the loaded configuration.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

func setupLogging(w io.Writer) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// engineConfig returns the configured engine settings.
func engineConfig() (synth.Config, error) {
	cfg, err := GetConfig()
	if err != nil {
		return synth.Config{}, err
	}
	return cfg.Engine, nil
}
