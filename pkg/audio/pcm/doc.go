// Package pcm provides types and utilities for working with 16-bit mono PCM
// (Pulse Code Modulation) audio.
//
// The engine renders float32 samples in [-1, 1]. This package is the boundary
// where those samples become L16 bytes, either for the browser stream or for
// files, and where captured L16 input becomes floats again.
//
// Key types:
//   - Format: a mono L16 format at 16, 24, 44.1 or 48 kHz
//   - Chunk: interface for audio data chunks
//   - DataChunk: concrete Chunk for raw L16 bytes
//   - Writer: interface for writing audio chunks
//
// Example usage:
//
//	format, err := pcm.FormatFor(48000)
//	if err != nil {
//	    return err
//	}
//	chunk := format.FloatChunk(rendered)
//	err = sink.Write(chunk)
package pcm
