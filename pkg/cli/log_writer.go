package cli

import (
	"strings"

	"github.com/haivivi/tonewave/pkg/buffer"
)

// LogWriter is an io.Writer that keeps the last lines written to it, so
// slog output can be shown inside a Frame instead of tearing the screen.
type LogWriter struct {
	buf *buffer.RingBuffer[string]
}

// NewLogWriter keeps up to maxLines lines.
func NewLogWriter(maxLines int) *LogWriter {
	return &LogWriter{buf: buffer.RingN[string](maxLines)}
}

// Write implements io.Writer. Each line is stored separately.
func (w *LogWriter) Write(p []byte) (int, error) {
	text := strings.TrimRight(string(p), "\n")
	for _, line := range strings.Split(text, "\n") {
		_ = w.buf.Add(line)
	}
	return len(p), nil
}

// Lines returns the kept lines, oldest first.
func (w *LogWriter) Lines() []string {
	return w.buf.Bytes()
}
