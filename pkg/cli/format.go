package cli

import (
	"fmt"
	"math"
	"time"
)

// FormatHz formats a frequency with a unit suited to its size.
func FormatHz(hz float64) string {
	switch {
	case math.IsNaN(hz) || math.IsInf(hz, 0):
		return "-"
	case hz >= 1000:
		return fmt.Sprintf("%.2f kHz", hz/1000)
	default:
		return fmt.Sprintf("%.1f Hz", hz)
	}
}

// FormatDecibels formats a level in dB. Levels at or below floor print as
// "-inf".
func FormatDecibels(db, floor float64) string {
	if db <= floor || math.IsNaN(db) {
		return "-inf dB"
	}
	return fmt.Sprintf("%.1f dB", db)
}

// FormatClock formats a render clock position as m:ss.mmm.
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds * float64(time.Second)).Round(time.Millisecond)
	m := int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	return fmt.Sprintf("%d:%06.3f", m, d.Seconds())
}

// FormatBytes formats a byte count.
func FormatBytes(n int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)
	switch {
	case n >= MB:
		return fmt.Sprintf("%.2f MB", float64(n)/MB)
	case n >= KB:
		return fmt.Sprintf("%.2f KB", float64(n)/KB)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
