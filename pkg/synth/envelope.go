package synth

import (
	"math"

	"github.com/haivivi/tonewave/pkg/audio/graph"
)

// SustainLevel is the gain a pressed voice ramps to.
const SustainLevel = 0.5

// RampTo schedules a linear ramp of p from its value now to target over
// seconds, measured from the current render time. A later call re-targets
// from the instantaneous value at that moment. Non-positive durations set the
// value immediately.
func RampTo(p *graph.Param, target, seconds float64) {
	now := p.Context().CurrentTime()
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		p.SetValue(target)
		return
	}
	p.CancelAndHoldAtTime(now)
	p.LinearRampToValueAtTime(target, now+seconds)
}
