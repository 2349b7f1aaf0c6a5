// Package resampler converts captured mono L16 streams to the sample rate of
// the audio graph.
//
// Browsers and capture devices rarely agree with the engine on a sample rate
// (16 kHz microphones, 44.1 kHz files, 48 kHz graphs). The Resampler decodes
// L16 input to float32 and runs it through the pure-Go go-audio-resampling
// converter. No CGO is involved.
//
// Example usage:
//
//	r, err := resampler.New(micPCM, 16000, 48000)
//	if err != nil {
//	    return err
//	}
//	buf := make([]float32, 480)
//	n, err := r.Read(buf)
package resampler
