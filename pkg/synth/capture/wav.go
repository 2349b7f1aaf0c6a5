package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"

	"github.com/haivivi/tonewave/pkg/audio/pcm"
)

// WAVAcquirer serves capture streams from WAV files. Multichannel files are
// mixed down to mono and everything is resampled to Rate.
type WAVAcquirer struct {
	// Rate is the sample rate streams are delivered at.
	Rate int

	// Open returns the WAV data for id. When nil, id is taken as a file path.
	Open func(id string) (io.ReadSeeker, error)
}

// Acquire decodes the WAV for id and returns a stream over it.
func (a *WAVAcquirer) Acquire(ctx context.Context, id string) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDenied, err)
	}
	open := a.Open
	if open == nil {
		open = func(id string) (io.ReadSeeker, error) { return os.Open(id) }
	}
	r, err := open(id)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrDenied, id, err)
	}
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}

	data, rate, err := DecodeWAV(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDenied, id, err)
	}
	return NewPCMStream(bytes.NewReader(data), rate, a.Rate)
}

// DecodeWAV reads a PCM WAV and returns it as mono L16 with its sample rate.
func DecodeWAV(r io.ReadSeeker) ([]byte, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("capture: not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("capture: decode wav: %w", err)
	}
	channels := max(buf.Format.NumChannels, 1)
	scale := float32(int64(1) << (max(buf.SourceBitDepth, 1) - 1))

	samples := make([]float32, len(buf.Data)/channels)
	for i := range samples {
		var sum float32
		for c := range channels {
			sum += float32(buf.Data[i*channels+c])
		}
		samples[i] = sum / float32(channels) / scale
	}
	return pcm.EncodeFloat32(nil, samples), buf.Format.SampleRate, nil
}
