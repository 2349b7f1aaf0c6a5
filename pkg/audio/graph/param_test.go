package graph

import (
	"math"
	"testing"
)

func approx(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestParamLinearRamp(t *testing.T) {
	ctx := NewContext()
	p := newParam(ctx, 0, 0, 1)
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 0.1)

	tests := []struct {
		at, want float64
	}{
		{0, 0},
		{0.05, 0.5},
		{0.1, 1},
		{0.5, 1},
	}
	for _, tt := range tests {
		if got := p.ValueAt(tt.at); !approx(got, tt.want, 1e-9) {
			t.Errorf("ValueAt(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestParamCancelAndHold(t *testing.T) {
	ctx := NewContext()
	p := newParam(ctx, 0, 0, 1)
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 1)

	p.CancelAndHoldAtTime(0.25)
	if got := p.ValueAt(0.25); !approx(got, 0.25, 1e-9) {
		t.Fatalf("held value = %v, want 0.25", got)
	}
	if got := p.ValueAt(0.9); !approx(got, 0.25, 1e-9) {
		t.Fatalf("value after hold = %v, want 0.25", got)
	}

	p.LinearRampToValueAtTime(0, 0.75)
	if got := p.ValueAt(0.5); !approx(got, 0.125, 1e-9) {
		t.Fatalf("ramp from held value = %v, want 0.125", got)
	}
}

func TestParamCancelScheduledValues(t *testing.T) {
	ctx := NewContext()
	p := newParam(ctx, 0.5, 0, 1)
	p.SetValueAtTime(1, 0.1)
	p.SetValueAtTime(0, 0.2)
	p.CancelScheduledValues(0.15)
	if p.ScheduledEvents() != 1 {
		t.Fatalf("ScheduledEvents = %d", p.ScheduledEvents())
	}
	if got := p.ValueAt(0.3); got != 1 {
		t.Fatalf("ValueAt = %v, want 1", got)
	}
}

func TestParamClampsAndCompacts(t *testing.T) {
	ctx := NewContext()
	p := newParam(ctx, 0, 0, 1)
	p.SetValueAtTime(5, 0)
	p.LinearRampToValueAtTime(-3, 0.001)
	ctx.Advance(0.01)

	values := make([]float64, RenderQuantum)
	p.fill(values, ctx.CurrentFrame())
	if values[0] != 0 {
		t.Fatalf("value = %v, want clamped 0", values[0])
	}
	if p.ScheduledEvents() != 0 {
		t.Fatalf("past events not compacted: %d", p.ScheduledEvents())
	}
}

func TestParamSetValueClearsEvents(t *testing.T) {
	ctx := NewContext()
	p := newParam(ctx, 0, 0, 1)
	p.LinearRampToValueAtTime(1, 1)
	p.SetValue(0.3)
	if p.ScheduledEvents() != 0 || p.Value() != 0.3 {
		t.Fatalf("events = %d value = %v", p.ScheduledEvents(), p.Value())
	}
}
