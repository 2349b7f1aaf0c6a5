// Package buffer provides a thread-safe generic ring buffer for streaming
// sample data.
//
// RingBuffer keeps a sliding window of the most recent elements and
// overwrites the oldest ones when full. It serves two roles in tonewave:
//
//   - As an observation window: graph.Analyser writes every rendered quantum
//     into a ring and reads the latest fftSize samples with Window.
//   - As a capture queue: capture streams push decoded microphone samples
//     from a reader goroutine, and the render loop drains them with the
//     non-blocking TryRead.
//
// Example usage:
//
//	rb := buffer.RingN[float32](2048)
//	rb.Write(samples)
//
//	win := make([]float32, 2048)
//	rb.Window(win) // latest 2048 samples, zero-padded at the front
package buffer
