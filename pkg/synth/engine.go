package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/haivivi/tonewave/pkg/audio/graph"
	"github.com/haivivi/tonewave/pkg/synth/capture"
	"github.com/haivivi/tonewave/pkg/synth/offload"
)

// Emitter receives outbound messages. It may be called from the goroutine
// driving the engine and from the offload relay, and must not call back into
// the engine.
type Emitter func(Message)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEmitter sets the receiver of outbound messages.
func WithEmitter(fn Emitter) Option {
	return func(e *Engine) {
		e.emit = fn
	}
}

// WithAcquirer sets how capture streams are acquired. Without one, every
// acquisition is denied.
func WithAcquirer(a capture.Acquirer) Option {
	return func(e *Engine) {
		if a != nil {
			e.acquirer = a
		}
	}
}

// WithOffload overrides how the offload channel is started when
// Config.Offload is set.
func WithOffload(start func() (*offload.Channel, error)) Option {
	return func(e *Engine) {
		e.startOffload = start
	}
}

type sampleRequest struct {
	kind FrameKind
	refs []VoiceRef
}

// Engine is the voice and analysis engine. All voice, graph and envelope work
// is serialized by one lock; the render clock advances only through Render.
type Engine struct {
	cfg          Config
	logger       *slog.Logger
	emit         Emitter
	acquirer     capture.Acquirer
	startOffload func() (*offload.Channel, error)

	mu      sync.Mutex
	ctx     *graph.Context
	reg     *Registry
	sampler *Sampler
	pending []sampleRequest
	closed  bool

	offload *offload.Channel
	life    context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:      cfg,
		logger:   slog.Default().With("component", "synth"),
		acquirer: capture.Deny,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.ctx = graph.NewContext(graph.WithSampleRate(cfg.SampleRate))
	e.reg = NewRegistry(NewBuilder(e.ctx, cfg.Analyser()), e.logger)
	e.sampler = NewSampler(e.reg)
	e.life, e.cancel = context.WithCancel(context.Background())

	if cfg.Offload {
		start := e.startOffload
		if start == nil {
			start = func() (*offload.Channel, error) {
				return offload.Start(offload.DominantFrequency, offload.WithLogger(e.logger))
			}
		}
		ch, err := start()
		if err != nil {
			e.logger.Warn("synth: frequency estimates disabled",
				"error", fmt.Errorf("%w: %w", ErrOffloadUnavailable, err))
		} else {
			ch.OnResult(e.onEstimates)
			e.offload = ch
		}
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// SampleRate returns the render clock rate.
func (e *Engine) SampleRate() int { return e.cfg.SampleRate }

// OffloadEnabled reports whether frequency estimates are produced.
func (e *Engine) OffloadEnabled() bool { return e.offload != nil }

// Now returns the render clock in seconds.
func (e *Engine) Now() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx.CurrentTime()
}

// Press creates or replaces an oscillator voice and emits voiceCreated.
func (e *Engine) Press(id VoiceID, frequency float64, shape graph.OscillatorType, attack float64) (VoiceInfo, error) {
	if !(frequency > 0) || math.IsInf(frequency, 0) {
		return VoiceInfo{}, fmt.Errorf("synth: invalid frequency %v for %s", frequency, id)
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return VoiceInfo{}, ErrClosed
	}
	v, err := e.reg.Press(id, frequency, shape, attack)
	if err != nil {
		e.mu.Unlock()
		return VoiceInfo{}, err
	}
	info := v.Info()
	e.mu.Unlock()

	e.logger.Debug("synth: voice pressed", "id", id, "frequency", frequency, "shape", shape, "attack", attack)
	e.send(&VoiceCreated{ID: info.ID, Handle: info.Handle})
	return info, nil
}

// Release starts the release of a voice. Unknown and releasing voices are
// ignored; it reports whether a release was started.
func (e *Engine) Release(ref VoiceRef, release float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	return e.reg.Release(ref, release)
}

// ActivateMic acquires a capture stream for id and, once acquired, registers
// it as a voice ramping in over attack seconds. It blocks until acquisition is
// answered or ctx is done. A failure is returned wrapping
// ErrAcquisitionDenied and reported once as an error message; no voice is
// registered.
func (e *Engine) ActivateMic(ctx context.Context, id VoiceID, attack float64) (VoiceInfo, error) {
	stream, err := e.acquirer.Acquire(ctx, string(id))
	if err == nil && stream == nil {
		err = errors.New("no stream")
	}
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrAcquisitionDenied, id, err)
		e.logger.Info("synth: microphone not activated", "id", id, "error", err)
		e.send(&Error{Kind: ErrorKindAcquisitionDenied, ID: id, Message: err.Error()})
		return VoiceInfo{}, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		stream.Close()
		return VoiceInfo{}, ErrClosed
	}
	v, err := e.reg.PressStream(id, stream, attack)
	if err != nil {
		e.mu.Unlock()
		return VoiceInfo{}, err
	}
	info := v.Info()
	e.mu.Unlock()

	e.logger.Debug("synth: microphone voice", "id", id, "handle", info.Handle)
	e.send(&VoiceCreated{ID: info.ID, Handle: info.Handle})
	return info, nil
}

// RequestWaveforms queues one time-domain pass for refs. It runs on the next
// Tick.
func (e *Engine) RequestWaveforms(refs []VoiceRef) {
	e.request(TimeDomain, refs)
}

// RequestSpectra queues one frequency-domain pass for refs. It runs on the
// next Tick.
func (e *Engine) RequestSpectra(refs []VoiceRef) {
	e.request(FrequencyDomain, refs)
}

func (e *Engine) request(kind FrameKind, refs []VoiceRef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, sampleRequest{kind: kind, refs: refs})
}

// Tick is the cadence callback, invoked once per display frame. It runs the
// queued sampling passes, plus a pass over every voice when broadcasting, and
// forwards spectra to the offload worker.
func (e *Engine) Tick() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	reqs := e.pending
	e.pending = nil

	var out []Event
	var spectra []SampleFrame
	for _, r := range reqs {
		frames := e.sampler.Sample(r.kind, r.refs)
		if r.kind == FrequencyDomain {
			out = append(out, &Spectra{Entries: entries(frames)})
			spectra = append(spectra, frames...)
		} else {
			out = append(out, &Waveforms{Entries: entries(frames)})
		}
	}
	if e.cfg.Broadcast && e.reg.Len() > 0 {
		waves := e.sampler.SampleAll(TimeDomain)
		specs := e.sampler.SampleAll(FrequencyDomain)
		out = append(out, &Waveforms{Entries: entries(waves)}, &Spectra{Entries: entries(specs)})
		spectra = append(spectra, specs...)
	}
	e.mu.Unlock()

	for _, ev := range out {
		e.send(ev)
	}
	e.submit(spectra)
}

func (e *Engine) submit(frames []SampleFrame) {
	if e.offload == nil || len(frames) == 0 {
		return
	}
	seen := make(map[string]int, len(frames))
	payload := make([]offload.Frame, 0, len(frames))
	for _, f := range frames {
		of := offload.Frame{ID: string(f.VoiceID), Handle: f.Handle, Kind: f.Kind.String(), Samples: f.Samples}
		if i, ok := seen[f.Handle]; ok {
			payload[i] = of
			continue
		}
		seen[f.Handle] = len(payload)
		payload = append(payload, of)
	}
	_, err := e.offload.Submit(offload.Message{
		SampleRate: e.cfg.SampleRate,
		FFTSize:    e.cfg.TapResolution,
		Payload:    payload,
	})
	if err != nil {
		e.logger.Debug("synth: offload submit", "error", err)
	}
}

func (e *Engine) onEstimates(b offload.Batch) {
	for _, r := range b.Results {
		e.send(&FrequencyEstimate{ID: VoiceID(r.ID), Value: r.Frequency})
	}
}

// Render advances the render clock by len(out) frames and writes the mixed
// output. Deferred teardowns due in that span run before it returns.
func (e *Engine) Render(out []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ctx.Render(out)
}

// Advance renders and discards the given number of seconds.
func (e *Engine) Advance(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ctx.Advance(seconds)
}

// Voices returns snapshots of the live voices, ordered by id.
func (e *Engine) Voices() []VoiceInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	voices := e.reg.ActiveVoices()
	out := make([]VoiceInfo, len(voices))
	for i, v := range voices {
		out[i] = v.Info()
	}
	return out
}

// State returns the state of the voice under id, or Idle.
func (e *Engine) State(id VoiceID) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.State(id)
}

// SampleAll reads one frame of kind from every active voice immediately.
func (e *Engine) SampleAll(kind FrameKind) []SampleFrame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sampler.SampleAll(kind)
}

// Sample reads one frame of kind for each resolvable ref immediately.
func (e *Engine) Sample(kind FrameKind, refs []VoiceRef) []SampleFrame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sampler.Sample(kind, refs)
}

// Handle dispatches one inbound message. activateMic runs in the background
// until answered, ctx is done, or the engine is closed.
func (e *Engine) Handle(ctx context.Context, msg Message) error {
	switch p := msg.Payload.(type) {
	case *NotePress:
		if _, err := e.Press(p.ID, p.Frequency, p.WaveShape, p.Attack); err != nil {
			e.send(&Error{Kind: ErrorKindBadMessage, ID: p.ID, Message: err.Error()})
			return err
		}
	case *NoteRelease:
		e.Release(p.Ref(), p.Release)
	case *ActivateMic:
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return ErrClosed
		}
		e.wg.Add(1)
		e.mu.Unlock()

		actx, cancel := context.WithCancel(e.life)
		stop := context.AfterFunc(ctx, cancel)
		go func() {
			defer e.wg.Done()
			defer cancel()
			defer stop()
			e.ActivateMic(actx, p.ID, p.Attack)
		}()
	case *RequestWaveforms:
		e.RequestWaveforms(p.Voices)
	case *RequestSpectra:
		e.RequestSpectra(p.Voices)
	default:
		err := fmt.Errorf("synth: unexpected inbound message %q", msg.Type)
		e.send(&Error{Kind: ErrorKindBadMessage, Message: err.Error()})
		return err
	}
	return nil
}

// Close disposes every voice, cancels pending acquisitions and stops the
// offload worker.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.reg.Reset()
	e.pending = nil
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
	if e.offload != nil {
		return e.offload.Close()
	}
	return nil
}

func (e *Engine) send(ev Event) {
	if e.emit != nil {
		e.emit(NewMessage(ev))
	}
}
