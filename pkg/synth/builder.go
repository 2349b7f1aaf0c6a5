package synth

import (
	"io"

	"github.com/haivivi/tonewave/pkg/audio/graph"
)

// Source produces the signal of a voice.
type Source interface {
	graph.AudioNode
}

// Generator is a Source that must be started.
type Generator interface {
	Source
	Start(when float64) error
	Stop(when float64)
}

// Graph is the routing of one voice:
//
//	source -> amplitude -> destination
//	source -> tap
//
// The tap sits parallel to the amplitude stage and sees the raw signal.
type Graph struct {
	Source    Source
	Amplitude *graph.Gain
	Tap       *graph.Analyser

	closer   io.Closer
	disposed bool
}

// Disconnect severs the source, the amplitude stage and the tap, and stops a
// generator. A second call returns ErrGraphDisposed.
func (g *Graph) Disconnect() error {
	if g.disposed {
		return ErrGraphDisposed
	}
	g.disposed = true
	if gen, ok := g.Source.(Generator); ok {
		gen.Stop(g.Amplitude.Context().CurrentTime())
	}
	g.Source.Disconnect()
	g.Amplitude.Disconnect()
	g.Tap.Disconnect()
	if g.closer != nil {
		return g.closer.Close()
	}
	return nil
}

// Disposed reports whether Disconnect has been called.
func (g *Graph) Disposed() bool { return g.disposed }

// Builder wires voice graphs in one context.
type Builder struct {
	ctx *graph.Context
	tap graph.AnalyserConfig
}

// NewBuilder creates a Builder with the given tap configuration.
func NewBuilder(ctx *graph.Context, tap graph.AnalyserConfig) *Builder {
	return &Builder{ctx: ctx, tap: tap}
}

// Context returns the graph context.
func (b *Builder) Context() *graph.Context { return b.ctx }

// Build wires src into a new voice graph with its amplitude at 0. Generators
// are not started.
func (b *Builder) Build(src Source) (*Graph, error) {
	tap, err := b.ctx.NewAnalyser(b.tap)
	if err != nil {
		return nil, err
	}
	amp := b.ctx.NewGain()
	amp.Gain.SetValue(0)

	g := &Graph{Source: src, Amplitude: amp, Tap: tap}
	for _, link := range [][2]graph.AudioNode{
		{src, amp},
		{amp, b.ctx.Destination()},
		{src, tap},
	} {
		if err := link[0].Connect(link[1]); err != nil {
			g.Disconnect()
			return nil, err
		}
	}
	return g, nil
}
