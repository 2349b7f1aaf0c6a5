package resampler

import (
	"fmt"
	"io"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/haivivi/tonewave/pkg/audio/pcm"
)

// Resampler reads mono L16 audio from an io.Reader at one sample rate and
// yields float32 samples at another. When the rates match it only decodes.
//
// A Resampler is safe for concurrent use, though Read is normally driven by a
// single pump goroutine.
type Resampler struct {
	srcRate, dstRate int
	src              *sampleReader

	mu       sync.Mutex
	closeErr error
	rs       resampling.Resampler
	raw      []byte
	in       []float64
	leftover []float32
}

// New creates a Resampler converting src from srcRate to dstRate.
func New(src io.Reader, srcRate, dstRate int) (*Resampler, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", srcRate, dstRate)
	}
	r := &Resampler{
		srcRate: srcRate,
		dstRate: dstRate,
		src:     &sampleReader{r: src},
	}
	if srcRate != dstRate {
		rs, err := resampling.New(&resampling.Config{
			InputRate:  float64(srcRate),
			OutputRate: float64(dstRate),
			Channels:   1,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("resampler: create: %w", err)
		}
		r.rs = rs
	}
	return r, nil
}

// SourceRate returns the input sample rate.
func (r *Resampler) SourceRate() int { return r.srcRate }

// Rate returns the output sample rate.
func (r *Resampler) Rate() int { return r.dstRate }

// Read fills p with resampled samples. It returns io.EOF when the source is
// exhausted and all converted samples have been delivered.
func (r *Resampler) Read(p []float32) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.leftover) > 0 {
		n := copy(p, r.leftover)
		r.leftover = r.leftover[n:]
		return n, nil
	}
	if r.closeErr != nil {
		return 0, r.closeErr
	}

	for {
		out, readErr := r.processLocked(len(p))
		if len(out) > 0 {
			n := copy(p, out)
			r.leftover = append(r.leftover[:0], out[n:]...)
			return n, nil
		}
		if readErr != nil {
			return 0, readErr
		}
	}
}

// processLocked reads enough source samples for about want output samples and
// converts them.
func (r *Resampler) processLocked(want int) ([]float32, error) {
	srcSamples := want*r.srcRate/r.dstRate + 4
	if cap(r.raw) < srcSamples*2 {
		r.raw = make([]byte, srcSamples*2)
	}
	n, readErr := r.src.Read(r.raw[:srcSamples*2])
	if n == 0 {
		if readErr == nil {
			readErr = io.ErrNoProgress
		}
		return nil, readErr
	}

	samples := pcm.DecodeFloat32(nil, r.raw[:n])
	if r.rs == nil {
		return samples, readErr
	}

	r.in = r.in[:0]
	for _, s := range samples {
		r.in = append(r.in, float64(s))
	}
	output, err := r.rs.Process(r.in)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}
	out := make([]float32, len(output))
	for i, s := range output {
		out[i] = float32(s)
	}
	return out, readErr
}

// Close marks the resampler closed. Subsequent reads return io.ErrClosedPipe
// once buffered output is drained.
func (r *Resampler) Close() error {
	return r.CloseWithError(fmt.Errorf("resampler: %w", io.ErrClosedPipe))
}

// CloseWithError closes the resampler with err.
func (r *Resampler) CloseWithError(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeErr == nil {
		r.closeErr = err
	}
	r.rs = nil
	return nil
}

// sampleReader returns only whole 16-bit samples, holding back an odd
// trailing byte until the next read.
type sampleReader struct {
	r       io.Reader
	carry   byte
	carried bool
}

func (sr *sampleReader) Read(p []byte) (int, error) {
	if len(p) < 2 {
		return 0, io.ErrShortBuffer
	}
	p = p[:len(p)&^1]

	n := 0
	if sr.carried {
		p[0] = sr.carry
		sr.carried = false
		n = 1
	}
	rn, err := sr.r.Read(p[n:])
	n += rn
	if n%2 == 1 {
		if err == io.EOF {
			return n - 1, io.ErrUnexpectedEOF
		}
		n--
		sr.carry = p[n]
		sr.carried = true
	}
	return n, err
}
