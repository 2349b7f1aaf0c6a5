package score

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/haivivi/tonewave/pkg/synth"
)

// DefaultBlock is the largest number of frames rendered between checks for
// due events.
const DefaultBlock = 1024

// Capture is the result of one sample event.
type Capture struct {
	At     float64             `json:"at" yaml:"at"`
	Kind   synth.FrameKind     `json:"kind" yaml:"kind"`
	Frames []synth.SampleFrame `json:"frames" yaml:"frames"`
}

// Player plays scores through an engine.
type Player struct {
	Engine *synth.Engine

	// FrameRate runs an engine tick this many times per second of render
	// time. Zero leaves ticks to tick events.
	FrameRate int

	// Realtime paces rendering to the wall clock.
	Realtime bool

	// Output receives every rendered block. The slice is reused.
	Output func([]float32) error

	// OnSample receives the frames of each sample event.
	OnSample func(Capture)

	// OnTick runs after every engine tick.
	OnTick func(now float64)

	Logger *slog.Logger
}

// Play renders s from the engine's current clock until s.End.
func (p *Player) Play(ctx context.Context, s *Score) error {
	if p.Engine == nil {
		return fmt.Errorf("score: player has no engine")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default().With("component", "score")
	}
	rate := float64(p.Engine.SampleRate())
	toFrame := func(t float64) int64 { return int64(math.Round(t * rate)) }

	events := s.Sorted()
	end := toFrame(s.End())
	var tickEvery int64
	if p.FrameRate > 0 {
		tickEvery = max(1, toFrame(1/float64(p.FrameRate)))
	}
	nextTick := tickEvery

	buf := make([]float32, DefaultBlock)
	var frame int64
	start := time.Now()
	next := 0
	for {
		// Events due now run before the block that starts here.
		for next < len(events) && toFrame(events[next].At) <= frame {
			if err := p.run(ctx, logger, events[next]); err != nil {
				return err
			}
			next++
		}
		if frame >= end {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		stop := min(end, frame+int64(len(buf)))
		if next < len(events) {
			stop = min(stop, toFrame(events[next].At))
		}
		if tickEvery > 0 {
			stop = min(stop, nextTick)
		}

		block := buf[:stop-frame]
		p.Engine.Render(block)
		if p.Output != nil {
			if err := p.Output(block); err != nil {
				return fmt.Errorf("score: output: %w", err)
			}
		}
		frame = stop

		if tickEvery > 0 && frame >= nextTick {
			p.tick()
			nextTick += tickEvery
		}
		if p.Realtime {
			ahead := time.Duration(float64(frame)/rate*float64(time.Second)) - time.Since(start)
			if ahead > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(ahead):
				}
			}
		}
	}
}

func (p *Player) tick() {
	p.Engine.Tick()
	if p.OnTick != nil {
		p.OnTick(p.Engine.Now())
	}
}

func (p *Player) run(ctx context.Context, logger *slog.Logger, ev Event) error {
	logger.Debug("score: event", "at", ev.At, "action", ev.Name())
	switch {
	case ev.Press != nil:
		a := ev.Press
		if _, err := p.Engine.Press(a.ID, a.Frequency, a.Shape, a.Attack); err != nil {
			return fmt.Errorf("score: press %s at %v: %w", a.ID, ev.At, err)
		}
	case ev.Release != nil:
		if !p.Engine.Release(synth.VoiceRef{ID: ev.Release.ID}, ev.Release.Release) {
			logger.Warn("score: release of unknown voice", "id", ev.Release.ID, "at", ev.At)
		}
	case ev.Mic != nil:
		// A denied microphone is reported by the engine and the score goes on.
		if _, err := p.Engine.ActivateMic(ctx, ev.Mic.ID, ev.Mic.Attack); err != nil {
			logger.Warn("score: mic not activated", "id", ev.Mic.ID, "error", err)
		}
	case ev.Sample != nil:
		var frames []synth.SampleFrame
		if len(ev.Sample.Voices) == 0 {
			frames = p.Engine.SampleAll(ev.Sample.Kind)
		} else {
			refs := make([]synth.VoiceRef, len(ev.Sample.Voices))
			for i, id := range ev.Sample.Voices {
				refs[i] = synth.VoiceRef{ID: id}
			}
			frames = p.Engine.Sample(ev.Sample.Kind, refs)
		}
		if p.OnSample != nil {
			p.OnSample(Capture{At: p.Engine.Now(), Kind: ev.Sample.Kind, Frames: frames})
		}
	case ev.Tick != nil:
		p.tick()
	}
	return nil
}
