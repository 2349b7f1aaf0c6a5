package synth

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/haivivi/tonewave/pkg/audio/graph"
	"github.com/haivivi/tonewave/pkg/synth/capture"
	"github.com/haivivi/tonewave/pkg/synth/offload"
)

type recorder struct {
	mu   sync.Mutex
	msgs []Message
	ch   chan Message
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Message, 256)}
}

func (r *recorder) emit(m Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
	select {
	case r.ch <- m:
	default:
	}
}

func (r *recorder) ofType(typ string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Offload = false
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, opts ...Option) (*Engine, *recorder) {
	t.Helper()
	rec := newRecorder()
	opts = append([]Option{WithEmitter(rec.emit)}, opts...)
	e, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, rec
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.TapResolution = 1000
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for bad tap resolution")
	}
}

func TestPressEmitsVoiceCreated(t *testing.T) {
	e, rec := newTestEngine(t, testConfig())
	info, err := e.Press("A4", 440, graph.Sine, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if info.Handle == "" || info.State != Attacking {
		t.Fatalf("info = %+v", info)
	}
	created := rec.ofType(TypeVoiceCreated)
	if len(created) != 1 {
		t.Fatalf("voiceCreated = %d", len(created))
	}
	vc := created[0].Payload.(*VoiceCreated)
	if vc.ID != "A4" || vc.Handle != info.Handle {
		t.Fatalf("voiceCreated = %+v", vc)
	}
}

func TestPressRejectsBadFrequency(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	for _, f := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := e.Press("x", f, graph.Sine, 0); err == nil {
			t.Errorf("Press(%v) succeeded", f)
		}
	}
	if len(e.Voices()) != 0 {
		t.Fatal("voice registered for bad frequency")
	}
}

func TestAmplitudeBoundedAfterAttack(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	if _, err := e.Press("A4", 440, graph.Square, 0.05); err != nil {
		t.Fatal(err)
	}
	v, _ := e.reg.Lookup(VoiceRef{ID: "A4"})

	check := func(phase string) {
		t.Helper()
		if a := v.Amplitude(); a < 0 || a > SustainLevel {
			t.Fatalf("%s: amplitude %v outside [0, %v] at t=%v", phase, a, SustainLevel, e.Now())
		}
	}
	buf := make([]float32, graph.RenderQuantum)
	for e.Now() < 0.05 {
		e.Render(buf)
		check("attack")
	}
	for range 100 {
		e.Render(buf)
		check("sustain")
		for _, s := range buf {
			if math.Abs(float64(s)) > SustainLevel+1e-6 {
				t.Fatalf("output %v above sustain level", s)
			}
		}
	}
	e.Release(VoiceRef{ID: "A4"}, 0.05)
	for e.State("A4") == Releasing {
		check("release")
		e.Render(buf)
	}
}

func TestReleaseUnknownIsNoop(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	e.Press("A4", 440, graph.Sine, 0)
	before := e.Voices()

	if e.Release(VoiceRef{ID: "B4"}, 0.1) {
		t.Fatal("Release of unknown id = true")
	}
	if e.Release(VoiceRef{Handle: "no-such-handle"}, 0.1) {
		t.Fatal("Release of unknown handle = true")
	}
	after := e.Voices()
	if len(after) != len(before) || after[0].Handle != before[0].Handle || after[0].State == Releasing {
		t.Fatalf("registry changed: %+v -> %+v", before, after)
	}
	if e.ctx.PendingTimers() != 0 {
		t.Fatalf("PendingTimers = %d", e.ctx.PendingTimers())
	}
}

func TestDoubleReleaseSchedulesOneTeardown(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	info, _ := e.Press("A4", 440, graph.Sine, 0)

	if !e.Release(VoiceRef{ID: "A4"}, 0.5) {
		t.Fatal("first Release = false")
	}
	if e.Release(VoiceRef{Handle: info.Handle}, 0.5) {
		t.Fatal("second Release = true")
	}
	if n := e.ctx.PendingTimers(); n != 1 {
		t.Fatalf("PendingTimers = %d, want 1", n)
	}
}

func TestReleaseDisposesAfterReleaseSeconds(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	e.Press("A4", 440, graph.Sine, 0.01)
	e.Advance(0.1)
	v, _ := e.reg.Lookup(VoiceRef{ID: "A4"})

	e.Release(VoiceRef{ID: "A4"}, 0.5)
	e.Advance(0.4)
	if e.State("A4") != Releasing {
		t.Fatalf("state before release end = %v", e.State("A4"))
	}
	// The tap still answers during the release ramp.
	if frames := e.SampleAll(TimeDomain); len(frames) != 1 {
		t.Fatalf("frames during release = %d", len(frames))
	}

	// Rendering runs in whole quanta, so the release began slightly after 0.1.
	e.Advance(0.11)
	if len(e.Voices()) != 0 {
		t.Fatalf("voices after release = %+v", e.Voices())
	}
	if v.State() != Disposed || !v.Graph().Disposed() {
		t.Fatalf("voice state = %v", v.State())
	}
	if n := e.ctx.Destination().Inputs(); n != 0 {
		t.Fatalf("destination inputs = %d", n)
	}
	if n := e.ctx.ActiveTaps(); n != 0 {
		t.Fatalf("active taps = %d", n)
	}
	if e.State("A4") != Idle {
		t.Fatalf("state = %v, want idle", e.State("A4"))
	}
}

func TestStaleTeardownSparesNewVoice(t *testing.T) {
	cfg := testConfig()
	cfg.SampleRate = 48000
	e, _ := newTestEngine(t, cfg)

	first, _ := e.Press("1", 440, graph.Sine, 0.01)
	e.Advance(1)
	e.Release(VoiceRef{ID: "1"}, 2)
	e.Advance(1)

	second, err := e.Press("1", 660, graph.Sine, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if second.Handle == first.Handle {
		t.Fatal("re-press reused the handle")
	}
	// The old voice was replaced at once.
	if n := e.ctx.Destination().Inputs(); n != 1 {
		t.Fatalf("destination inputs after re-press = %d", n)
	}

	// The teardown scheduled at t=1 fires at t=3.
	e.Advance(1.01)
	if e.ctx.PendingTimers() != 0 {
		t.Fatalf("PendingTimers = %d", e.ctx.PendingTimers())
	}

	voices := e.Voices()
	if len(voices) != 1 || voices[0].Handle != second.Handle {
		t.Fatalf("voices = %+v", voices)
	}
	if voices[0].State != Sustaining || voices[0].Amplitude != SustainLevel {
		t.Fatalf("new voice = %+v", voices[0])
	}
	if n := e.ctx.Destination().Inputs(); n != 1 {
		t.Fatalf("destination inputs = %d", n)
	}

	out := make([]float32, 1024)
	e.Render(out)
	var peak float32
	for _, s := range out {
		peak = max(peak, s, -s)
	}
	if peak < 0.4 {
		t.Fatalf("new voice silenced, peak = %v", peak)
	}

	// The old handle no longer resolves and cannot release the new voice.
	if e.Release(VoiceRef{Handle: first.Handle}, 0.1) {
		t.Fatal("stale handle released a voice")
	}
}

func TestSampleAllEmpty(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	for _, kind := range []FrameKind{TimeDomain, FrequencyDomain} {
		if frames := e.SampleAll(kind); len(frames) != 0 {
			t.Fatalf("SampleAll(%v) = %d frames", kind, len(frames))
		}
	}
}

func TestSampleFrameLengths(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	e.Press("A4", 440, graph.Sine, 0)
	e.Advance(0.05)

	wave := e.SampleAll(TimeDomain)
	if len(wave) != 1 || len(wave[0].Samples) != 2048 {
		t.Fatalf("time frame = %d x %d", len(wave), len(wave[0].Samples))
	}
	for _, s := range wave[0].Samples {
		if s < -1 || s > 1 {
			t.Fatalf("sample %v outside [-1, 1]", s)
		}
	}
	spec := e.SampleAll(FrequencyDomain)
	if len(spec[0].Samples) != 1024 {
		t.Fatalf("spectrum bins = %d", len(spec[0].Samples))
	}
	for _, v := range spec[0].Samples {
		if v < -100 || v > -30 {
			t.Fatalf("spectrum value %v outside [-100, -30]", v)
		}
	}
}

// The tap is parallel to the gain, so a voice still in its silent first
// instant shows the full raw oscillation.
func TestTapSeesRawSignal(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	e.Press("A4", 440, graph.Square, 10)
	out := make([]float32, 4096)
	e.Render(out)

	frames := e.SampleAll(TimeDomain)
	last := frames[0].Samples[len(frames[0].Samples)-1]
	if math.Abs(float64(last)) != 1 {
		t.Fatalf("tap sample = %v, want ±1", last)
	}
	if math.Abs(float64(out[len(out)-1])) > 0.01 {
		t.Fatalf("output = %v, want nearly silent during long attack", out[len(out)-1])
	}
}

func toneConfig() Config {
	cfg := testConfig()
	cfg.SampleRate = 44100
	cfg.TapResolution = 4096
	cfg.Smoothing = 0
	cfg.MaxDecibels = 0
	return cfg
}

func TestSpectrumPeakMatchesTone(t *testing.T) {
	e, _ := newTestEngine(t, toneConfig())
	e.Press("A4", 440, graph.Sine, 0)
	e.Advance(0.2)

	frames := e.SampleAll(FrequencyDomain)
	if len(frames) != 1 {
		t.Fatalf("frames = %d", len(frames))
	}
	spec := frames[0].Samples
	peak := 0
	for i, v := range spec {
		if v > spec[peak] {
			peak = i
		}
	}
	binWidth := 44100.0 / 4096
	if got := float64(peak) * binWidth; math.Abs(got-440) > binWidth {
		t.Fatalf("peak at %v Hz (bin %d), want 440 within %v", got, peak, binWidth)
	}
}

// With the default -30 dB ceiling the bins around the tone clamp to a
// plateau. Both the first maximum and the plateau midpoint stay within one
// bin of the tone.
func TestSpectrumPeakWithDefaultClamp(t *testing.T) {
	cfg := testConfig()
	cfg.SampleRate = 44100
	cfg.TapResolution = 4096
	e, _ := newTestEngine(t, cfg)
	e.Press("A4", 440, graph.Sine, 0)
	e.Advance(0.2)

	spec := e.SampleAll(FrequencyDomain)[0].Samples
	peak := 0
	for i, v := range spec {
		if v > spec[peak] {
			peak = i
		}
	}
	if spec[peak] != float32(cfg.MaxDecibels) {
		t.Fatalf("peak level = %v, want clamped at %v", spec[peak], cfg.MaxDecibels)
	}
	binWidth := 44100.0 / 4096
	if got := float64(peak) * binWidth; math.Abs(got-440) > binWidth {
		t.Fatalf("first maximum at %v Hz (bin %d), want 440 within %v", got, peak, binWidth)
	}

	results := offload.DominantFrequency(offload.Message{
		SampleRate: cfg.SampleRate,
		FFTSize:    cfg.TapResolution,
		Payload:    []offload.Frame{{ID: "A4", Samples: spec}},
	})
	if len(results) != 1 || math.Abs(results[0].Frequency-440) > binWidth {
		t.Fatalf("estimate = %+v, want 440 within %v", results, binWidth)
	}
	if results[0].Bin < peak {
		t.Fatalf("estimate bin %d before first maximum %d", results[0].Bin, peak)
	}
}

func TestFrequencyEstimateIsInHertz(t *testing.T) {
	cfg := toneConfig()
	cfg.Offload = true
	e, rec := newTestEngine(t, cfg)
	if !e.OffloadEnabled() {
		t.Fatal("offload not started")
	}
	e.Press("A4", 440, graph.Sine, 0)
	e.Advance(0.2)

	// Two passes in flight before any result.
	e.RequestSpectra([]VoiceRef{{ID: "A4"}})
	e.Tick()
	e.RequestSpectra([]VoiceRef{{ID: "A4"}})
	e.Tick()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case m := <-rec.ch:
			est, ok := m.Payload.(*FrequencyEstimate)
			if !ok {
				continue
			}
			// The coarse bin/total ratio would be about 0.02 here.
			if est.ID != "A4" || math.Abs(est.Value-440) > 44100.0/4096 {
				t.Fatalf("estimate = %+v, want about 440 Hz", est)
			}
			return
		case <-deadline:
			t.Fatal("no frequency estimate")
		}
	}
}

func TestOffloadFailureDegrades(t *testing.T) {
	cfg := testConfig()
	cfg.Offload = true
	e, rec := newTestEngine(t, cfg, WithOffload(func() (*offload.Channel, error) {
		return nil, errors.New("worker unavailable")
	}))
	if e.OffloadEnabled() {
		t.Fatal("OffloadEnabled = true")
	}
	if _, err := e.Press("A4", 440, graph.Sine, 0); err != nil {
		t.Fatal(err)
	}
	e.RequestSpectra([]VoiceRef{{ID: "A4"}})
	e.Tick()
	if len(rec.ofType(TypeSpectra)) != 1 {
		t.Fatal("spectra not emitted")
	}
	if len(rec.ofType(TypeFrequencyEstimate)) != 0 {
		t.Fatal("estimate emitted without offload")
	}
}

func TestTickServesQueuedRequests(t *testing.T) {
	e, rec := newTestEngine(t, testConfig())
	a, _ := e.Press("A4", 440, graph.Sine, 0)
	e.Press("C5", 523.25, graph.Triangle, 0)
	e.Advance(0.05)
	rec.reset()

	e.RequestWaveforms([]VoiceRef{{Handle: a.Handle}, {ID: "missing"}})
	if len(rec.ofType(TypeWaveforms)) != 0 {
		t.Fatal("sampled before the cadence tick")
	}
	e.Tick()
	waves := rec.ofType(TypeWaveforms)
	if len(waves) != 1 {
		t.Fatalf("waveforms messages = %d", len(waves))
	}
	entries := waves[0].Payload.(*Waveforms).Entries
	if len(entries) != 1 || entries[0].ID != "A4" || len(entries[0].Data) != 2048 {
		t.Fatalf("entries = %d", len(entries))
	}

	rec.reset()
	e.Tick()
	if len(rec.msgs) != 0 {
		t.Fatalf("idle tick emitted %d messages", len(rec.msgs))
	}
}

func TestBroadcastStopsAfterDisposal(t *testing.T) {
	cfg := testConfig()
	cfg.Broadcast = true
	e, rec := newTestEngine(t, cfg)
	e.Press("A4", 440, graph.Sine, 0)
	e.Tick()
	if len(rec.ofType(TypeWaveforms)) != 1 || len(rec.ofType(TypeSpectra)) != 1 {
		t.Fatal("broadcast tick did not sample")
	}

	e.Release(VoiceRef{ID: "A4"}, 0.1)
	e.Advance(0.2)
	rec.reset()
	e.Tick()
	if len(rec.msgs) != 0 {
		t.Fatalf("tick after disposal emitted %d messages", len(rec.msgs))
	}
}

func TestActivateMicDenied(t *testing.T) {
	e, rec := newTestEngine(t, testConfig())
	_, err := e.ActivateMic(context.Background(), "mic", 0.1)
	if !errors.Is(err, ErrAcquisitionDenied) || !errors.Is(err, capture.ErrDenied) {
		t.Fatalf("ActivateMic = %v", err)
	}
	if len(e.Voices()) != 0 {
		t.Fatal("voice registered after denial")
	}
	if n := e.ctx.Destination().Inputs(); n != 0 {
		t.Fatalf("destination inputs = %d", n)
	}
	errs := rec.ofType(TypeError)
	if len(errs) != 1 || errs[0].Payload.(*Error).Kind != ErrorKindAcquisitionDenied {
		t.Fatalf("error messages = %+v", errs)
	}
}

type fixedStream struct {
	v      float32
	closed bool
}

func (s *fixedStream) ReadSamples(p []float32) int {
	for i := range p {
		p[i] = s.v
	}
	return len(p)
}

func (s *fixedStream) Close() error {
	s.closed = true
	return nil
}

func TestActivateMicThroughGate(t *testing.T) {
	gate := capture.NewGate()
	e, rec := newTestEngine(t, testConfig(), WithAcquirer(gate))

	msg := NewMessage(&ActivateMic{ID: "mic", Attack: 0})
	if err := e.Handle(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for gate.Pending() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("acquisition never requested")
		}
		time.Sleep(time.Millisecond)
	}
	if len(e.Voices()) != 0 {
		t.Fatal("voice registered before grant")
	}

	stream := &fixedStream{v: 0.8}
	gate.Grant("mic", stream)
	select {
	case m := <-rec.ch:
		if m.Type != TypeVoiceCreated {
			t.Fatalf("message = %s", m.Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no voiceCreated after grant")
	}

	voices := e.Voices()
	if len(voices) != 1 || voices[0].Kind != "captured" {
		t.Fatalf("voices = %+v", voices)
	}
	out := make([]float32, 256)
	e.Render(out)
	if math.Abs(float64(out[255])-0.8*SustainLevel) > 1e-6 {
		t.Fatalf("captured output = %v", out[255])
	}

	e.Release(VoiceRef{ID: "mic"}, 0)
	e.Advance(0.01)
	if !stream.closed {
		t.Fatal("stream not closed on disposal")
	}
}

func TestCloseCancelsPendingAcquisition(t *testing.T) {
	gate := capture.NewGate()
	rec := newRecorder()
	e, err := New(testConfig(), WithAcquirer(gate), WithEmitter(rec.emit))
	if err != nil {
		t.Fatal(err)
	}
	e.Handle(context.Background(), NewMessage(&ActivateMic{ID: "mic"}))
	for gate.Pending() == 0 {
		time.Sleep(time.Millisecond)
	}
	done := make(chan struct{})
	go func() {
		e.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked on pending acquisition")
	}
	if _, err := e.Press("A4", 440, graph.Sine, 0); !errors.Is(err, ErrClosed) {
		t.Fatalf("Press after Close = %v", err)
	}
}

func TestHandleDispatch(t *testing.T) {
	e, rec := newTestEngine(t, testConfig())
	ctx := context.Background()

	if err := e.Handle(ctx, NewMessage(&NotePress{ID: "A4", Frequency: 440, Attack: 0.01, WaveShape: graph.Sawtooth})); err != nil {
		t.Fatal(err)
	}
	voices := e.Voices()
	if len(voices) != 1 || voices[0].Shape != graph.Sawtooth {
		t.Fatalf("voices = %+v", voices)
	}

	if err := e.Handle(ctx, NewMessage(&NotePress{ID: "bad"})); err == nil {
		t.Fatal("press with zero frequency accepted")
	}
	if errs := rec.ofType(TypeError); len(errs) != 1 || errs[0].Payload.(*Error).Kind != ErrorKindBadMessage {
		t.Fatalf("error messages = %+v", errs)
	}

	if err := e.Handle(ctx, NewMessage(&VoiceCreated{ID: "x"})); err == nil {
		t.Fatal("outbound message accepted as inbound")
	}

	e.Handle(ctx, NewMessage(&NoteRelease{Handle: voices[0].Handle, Release: 0.1}))
	if e.State("A4") != Releasing {
		t.Fatalf("state = %v", e.State("A4"))
	}
}
