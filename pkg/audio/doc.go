// Package audio provides audio processing utilities.
//
// This package serves as an umbrella for audio-related sub-packages:
//
//   - graph: a pull-based node graph with a sample clock, scheduled
//     parameter ramps and analyser taps
//   - pcm: 16-bit mono PCM formats and float conversion
//   - resampler: sample rate conversion for captured input
//
// Sample windows are kept in the separate pkg/buffer ring buffer.
//
// Example usage:
//
//	import (
//	    "github.com/haivivi/tonewave/pkg/audio/graph"
//	    "github.com/haivivi/tonewave/pkg/audio/pcm"
//	)
//
//	ctx := graph.NewContext()
//	osc := ctx.NewOscillator(graph.Sine)
//	osc.Connect(ctx.Destination())
//	osc.Start(0)
//
//	buf := make([]float32, 1024)
//	ctx.Render(buf)
//	chunk := pcm.L16Mono48K.FloatChunk(buf)
package audio
