package graph

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"github.com/haivivi/tonewave/pkg/buffer"
)

// AnalyserConfig holds the analyser snapshot parameters.
type AnalyserConfig struct {
	// FFTSize is the time-domain window length. Must be a power of two in
	// [32, 32768].
	FFTSize int `json:"fftSize" yaml:"fft_size"`

	// Smoothing is the spectral time-averaging constant in [0, 1].
	Smoothing float64 `json:"smoothing" yaml:"smoothing"`

	// MinDecibels and MaxDecibels bound the frequency readouts.
	MinDecibels float64 `json:"minDecibels" yaml:"min_decibels"`
	MaxDecibels float64 `json:"maxDecibels" yaml:"max_decibels"`
}

// DefaultAnalyserConfig returns the browser defaults.
func DefaultAnalyserConfig() AnalyserConfig {
	return AnalyserConfig{
		FFTSize:     2048,
		Smoothing:   0.8,
		MinDecibels: -100,
		MaxDecibels: -30,
	}
}

// Validate checks the configuration.
func (c AnalyserConfig) Validate() error {
	if c.FFTSize < 32 || c.FFTSize > 32768 || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("graph: fft size %d is not a power of two in [32, 32768]", c.FFTSize)
	}
	if c.Smoothing < 0 || c.Smoothing > 1 {
		return fmt.Errorf("graph: smoothing %v out of range [0, 1]", c.Smoothing)
	}
	if c.MinDecibels >= c.MaxDecibels {
		return fmt.Errorf("graph: min decibels %v must be below max %v", c.MinDecibels, c.MaxDecibels)
	}
	return nil
}

// Analyser passes its input through and records the most recent FFTSize
// samples. It is rendered every quantum for as long as it is connected, even
// when nothing downstream reaches the destination.
type Analyser struct {
	*node
	cfg AnalyserConfig

	ring *buffer.RingBuffer[float32]

	fft      *fourier.FFT
	win      []float64
	frame    []float32
	seq      []float64
	coeffs   []complex128
	smoothed []float64
	db       []float64
	computed int64 // quantum of the last spectrum
}

// NewAnalyser creates an analyser tap.
func (c *Context) NewAnalyser(cfg AnalyserConfig) (*Analyser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := cfg.FFTSize
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	a := &Analyser{
		cfg:      cfg,
		ring:     buffer.RingN[float32](n),
		fft:      fourier.NewFFT(n),
		win:      window.Blackman(ones),
		frame:    make([]float32, n),
		seq:      make([]float64, n),
		coeffs:   make([]complex128, n/2+1),
		smoothed: make([]float64, n/2),
		db:       make([]float64, n/2),
		computed: -1,
	}
	a.ring.Write(make([]float32, n))
	a.node = newNode(c, a)
	c.attachTap(a)
	return a, nil
}

// Config returns the analyser configuration.
func (a *Analyser) Config() AnalyserConfig { return a.cfg }

// FFTSize returns the time-domain window length.
func (a *Analyser) FFTSize() int { return a.cfg.FFTSize }

// FrequencyBinCount returns FFTSize/2.
func (a *Analyser) FrequencyBinCount() int { return a.cfg.FFTSize / 2 }

// Disconnect removes outgoing connections and stops the analyser being
// rendered as a tap.
func (a *Analyser) Disconnect() {
	a.node.Disconnect()
	a.ctx.detachTap(a)
}

func (a *Analyser) process(in, out []float32, _ int64) {
	if in == nil {
		clear(out)
	} else {
		copy(out, in)
	}
	a.ring.Write(out)
}

// FloatTimeDomainData copies the latest samples into dst, oldest first.
// It returns the number of samples written, at most FFTSize.
func (a *Analyser) FloatTimeDomainData(dst []float32) int {
	n := min(len(dst), a.cfg.FFTSize)
	a.ring.Window(a.frame)
	copy(dst[:n], a.frame[a.cfg.FFTSize-n:])
	return n
}

// ByteTimeDomainData writes the latest samples scaled to 0..255, with 128 as
// silence.
func (a *Analyser) ByteTimeDomainData(dst []byte) int {
	n := min(len(dst), a.cfg.FFTSize)
	a.ring.Window(a.frame)
	for i, s := range a.frame[a.cfg.FFTSize-n:] {
		dst[i] = clampByte(128 * (1 + float64(s)))
	}
	return n
}

// FloatFrequencyData writes FrequencyBinCount decibel magnitudes into dst,
// clamped to [MinDecibels, MaxDecibels].
func (a *Analyser) FloatFrequencyData(dst []float32) int {
	a.spectrum()
	n := min(len(dst), len(a.db))
	for i := range n {
		dst[i] = float32(a.db[i])
	}
	return n
}

// ByteFrequencyData writes FrequencyBinCount magnitudes scaled from the
// decibel range to 0..255.
func (a *Analyser) ByteFrequencyData(dst []byte) int {
	a.spectrum()
	n := min(len(dst), len(a.db))
	scale := 255 / (a.cfg.MaxDecibels - a.cfg.MinDecibels)
	for i := range n {
		dst[i] = clampByte(math.Floor(scale * (a.db[i] - a.cfg.MinDecibels)))
	}
	return n
}

// spectrum recomputes the smoothed spectrum at most once per render quantum.
func (a *Analyser) spectrum() {
	if a.computed == a.ctx.quantum {
		return
	}
	a.computed = a.ctx.quantum

	a.ring.Window(a.frame)
	for i, s := range a.frame {
		a.seq[i] = float64(s) * a.win[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.seq)

	n := float64(a.cfg.FFTSize)
	tau := a.cfg.Smoothing
	for k := range a.smoothed {
		mag := cmplx.Abs(a.coeffs[k]) / n
		a.smoothed[k] = tau*a.smoothed[k] + (1-tau)*mag
		db := -math.MaxFloat64
		if a.smoothed[k] > 0 {
			db = 20 * math.Log10(a.smoothed[k])
		}
		a.db[k] = min(max(db, a.cfg.MinDecibels), a.cfg.MaxDecibels)
	}
}

func clampByte(v float64) byte {
	return byte(min(max(v, 0), 255))
}
