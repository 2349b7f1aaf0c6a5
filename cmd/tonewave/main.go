// Command tonewave serves and exercises the synthesizer voice engine.
//
// Usage:
//
//	tonewave [flags] <command> [args]
//
// Commands:
//
//	serve    - WebSocket server for the browser UI
//	render   - Render a score to a WAV file
//	analyze  - Print sampled frames and frequency estimates of a score
//	monitor  - Play a score live with waveform and spectrum bars
//	config   - Show and edit configuration
//	version  - Show version information
package main

import (
	"os"

	"github.com/haivivi/tonewave/cmd/tonewave/commands"
	"github.com/haivivi/tonewave/pkg/cli"
)

func main() {
	if err := commands.Execute(); err != nil {
		cli.PrintError("%v", err)
		os.Exit(1)
	}
}
