// Package cli holds terminal helpers shared by the tonewave commands.
//
// It covers structured output (YAML or JSON, to stdout or a file), small
// formatters for frequencies, levels and durations, lipgloss frames for the
// live monitor, and a LogWriter that captures slog output for display inside
// a frame.
//
//	cli.Output(report, cli.OutputOptions{Format: cli.FormatJSON, File: path})
package cli
