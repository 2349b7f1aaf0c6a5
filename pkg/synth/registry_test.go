package synth

import (
	"errors"
	"math"
	"testing"

	"github.com/haivivi/tonewave/pkg/audio/graph"
)

func newTestRegistry(t *testing.T) (*graph.Context, *Registry) {
	t.Helper()
	ctx := graph.NewContext()
	return ctx, NewRegistry(NewBuilder(ctx, graph.DefaultAnalyserConfig()), nil)
}

func TestRampToRetargetsFromCurrentValue(t *testing.T) {
	ctx := graph.NewContext()
	g := ctx.NewGain()
	g.Gain.SetValue(0)

	RampTo(g.Gain, SustainLevel, 1)
	ctx.Advance(0.5)
	now := ctx.CurrentTime()
	held := g.Gain.Value()
	if math.Abs(held-SustainLevel*now) > 1e-9 {
		t.Fatalf("value at %v = %v", now, held)
	}

	RampTo(g.Gain, 0, 1)
	if got := g.Gain.ValueAt(now + 0.5); math.Abs(got-held/2) > 1e-9 {
		t.Fatalf("midpoint = %v, want %v", got, held/2)
	}
	if got := g.Gain.ValueAt(now + 1); got != 0 {
		t.Fatalf("end = %v", got)
	}
}

func TestRampToZeroDurationJumps(t *testing.T) {
	ctx := graph.NewContext()
	g := ctx.NewGain()
	for _, d := range []float64{0, -1, math.NaN()} {
		g.Gain.SetValue(0)
		RampTo(g.Gain, 0.5, d)
		if g.Gain.Value() != 0.5 || g.Gain.ScheduledEvents() != 0 {
			t.Fatalf("duration %v: value %v events %d", d, g.Gain.Value(), g.Gain.ScheduledEvents())
		}
	}
}

func TestGraphDisconnectIdempotent(t *testing.T) {
	ctx := graph.NewContext()
	b := NewBuilder(ctx, graph.DefaultAnalyserConfig())
	osc := ctx.NewOscillator(graph.Sine)
	g, err := b.Build(osc)
	if err != nil {
		t.Fatal(err)
	}
	if g.Amplitude.Gain.Value() != 0 {
		t.Fatal("amplitude not 0 at build")
	}
	if osc.Playing() {
		t.Fatal("Build started the generator")
	}
	if ctx.Destination().Inputs() != 1 || osc.Outputs() != 2 {
		t.Fatalf("wiring: dest inputs %d, source outputs %d", ctx.Destination().Inputs(), osc.Outputs())
	}

	if err := g.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if err := g.Disconnect(); !errors.Is(err, ErrGraphDisposed) {
		t.Fatalf("second Disconnect = %v", err)
	}
	if ctx.Destination().Inputs() != 0 || osc.Outputs() != 0 || ctx.ActiveTaps() != 0 {
		t.Fatal("graph still connected")
	}
}

func TestRegistryLookup(t *testing.T) {
	_, r := newTestRegistry(t)
	v, err := r.Press("A4", 440, graph.Sine, 0)
	if err != nil {
		t.Fatal(err)
	}

	if got, err := r.Lookup(VoiceRef{ID: "A4"}); err != nil || got != v {
		t.Fatalf("Lookup by id = %v, %v", got, err)
	}
	if got, err := r.Lookup(v.Ref()); err != nil || got != v {
		t.Fatalf("Lookup by handle = %v, %v", got, err)
	}
	if _, err := r.Lookup(VoiceRef{ID: "A4", Handle: "stale"}); !errors.Is(err, ErrUnknownVoice) {
		t.Fatalf("Lookup with stale handle = %v", err)
	}
	if _, err := r.Lookup(VoiceRef{ID: "B4"}); !errors.Is(err, ErrUnknownVoice) {
		t.Fatalf("Lookup unknown = %v", err)
	}
}

func TestRegistryStates(t *testing.T) {
	ctx, r := newTestRegistry(t)
	if r.State("A4") != Idle {
		t.Fatal("unknown id not idle")
	}
	v, _ := r.Press("A4", 440, graph.Sine, 0.1)
	if v.State() != Attacking {
		t.Fatalf("state = %v", v.State())
	}
	ctx.Advance(0.2)
	if v.State() != Sustaining {
		t.Fatalf("state = %v", v.State())
	}
	r.Release(v.Ref(), 0.1)
	if v.State() != Releasing {
		t.Fatalf("state = %v", v.State())
	}
	ctx.Advance(0.2)
	if v.State() != Disposed || r.State("A4") != Idle {
		t.Fatalf("state = %v, registry %v", v.State(), r.State("A4"))
	}

	// A fresh press after disposal starts over.
	again, _ := r.Press("A4", 440, graph.Sine, 0.1)
	if again.State() != Attacking || again.Handle == v.Handle {
		t.Fatalf("re-press = %v %s", again.State(), again.Handle)
	}
}

func TestRegistryOverwriteDisposesOld(t *testing.T) {
	ctx, r := newTestRegistry(t)
	old, _ := r.Press("A4", 440, graph.Sine, 0)
	v, _ := r.Press("A4", 880, graph.Square, 0)
	if !old.Graph().Disposed() {
		t.Fatal("old graph still connected")
	}
	if r.Len() != 1 || ctx.Destination().Inputs() != 1 {
		t.Fatalf("len %d, inputs %d", r.Len(), ctx.Destination().Inputs())
	}
	if got, _ := r.Lookup(VoiceRef{ID: "A4"}); got != v {
		t.Fatal("id resolves to old voice")
	}
	if _, err := r.Lookup(old.Ref()); !errors.Is(err, ErrUnknownVoice) {
		t.Fatalf("old handle = %v", err)
	}
}

func TestRegistryReset(t *testing.T) {
	ctx, r := newTestRegistry(t)
	r.Press("A4", 440, graph.Sine, 0)
	b, _ := r.Press("B4", 494, graph.Sine, 0)
	r.Release(b.Ref(), 1)
	r.Reset()
	if r.Len() != 0 || ctx.PendingTimers() != 0 || ctx.Destination().Inputs() != 0 {
		t.Fatalf("len %d, timers %d, inputs %d", r.Len(), ctx.PendingTimers(), ctx.Destination().Inputs())
	}
}

func TestFrameKindText(t *testing.T) {
	for _, k := range []FrameKind{TimeDomain, FrequencyDomain} {
		b, _ := k.MarshalText()
		var got FrameKind
		if err := got.UnmarshalText(b); err != nil || got != k {
			t.Fatalf("round trip %v = %v, %v", k, got, err)
		}
	}
	var k FrameKind
	if err := k.UnmarshalText([]byte("phase")); err == nil {
		t.Fatal("expected error")
	}
}
