package synth

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/haivivi/tonewave/pkg/audio/graph"
)

// StreamInput is a captured stream usable as a voice source.
type StreamInput interface {
	graph.SampleSource
	io.Closer
}

// Registry maps voice ids to live voices. A second press for a live id
// replaces the old voice, disconnecting its graph at once.
//
// A Registry is not safe for concurrent use.
type Registry struct {
	ctx     *graph.Context
	builder *Builder
	logger  *slog.Logger

	voices  map[VoiceID]*Voice
	handles map[string]*Voice
	epoch   uint64
}

// NewRegistry creates an empty registry building voices with b.
func NewRegistry(b *Builder, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		ctx:     b.Context(),
		builder: b,
		logger:  logger,
		voices:  make(map[VoiceID]*Voice),
		handles: make(map[string]*Voice),
	}
}

// Press starts an oscillator voice and ramps it to SustainLevel over attack
// seconds.
func (r *Registry) Press(id VoiceID, frequency float64, shape graph.OscillatorType, attack float64) (*Voice, error) {
	osc := r.ctx.NewOscillator(shape)
	osc.Frequency.SetValue(frequency)
	v, err := r.register(id, osc, Generated, attack)
	if err != nil {
		return nil, err
	}
	v.Frequency = frequency
	v.Shape = shape
	if err := osc.Start(r.ctx.CurrentTime()); err != nil {
		return nil, err
	}
	return v, nil
}

// PressStream starts a captured voice. The registry owns stream afterwards and
// closes it when the voice is disposed.
func (r *Registry) PressStream(id VoiceID, stream StreamInput, attack float64) (*Voice, error) {
	src := r.ctx.NewStreamSource(stream)
	v, err := r.register(id, src, Captured, attack)
	if err != nil {
		stream.Close()
		return nil, err
	}
	v.graph.closer = stream
	return v, nil
}

func (r *Registry) register(id VoiceID, src Source, kind SourceKind, attack float64) (*Voice, error) {
	g, err := r.builder.Build(src)
	if err != nil {
		return nil, fmt.Errorf("synth: build %s: %w", id, err)
	}
	if old, ok := r.voices[id]; ok {
		r.logger.Debug("synth: replacing live voice", "id", id, "handle", old.Handle)
		r.dispose(old)
	}

	r.epoch++
	v := &Voice{
		ID:        id,
		Handle:    uuid.NewString(),
		Kind:      kind,
		graph:     g,
		epoch:     r.epoch,
		attackEnd: r.ctx.CurrentTime() + max(attack, 0),
	}
	RampTo(g.Amplitude.Gain, SustainLevel, attack)
	r.voices[id] = v
	r.handles[v.Handle] = v
	return v, nil
}

// Release ramps the voice to silence over release seconds and schedules its
// teardown for when the ramp ends. It reports false, doing nothing, for
// unknown or already releasing voices.
func (r *Registry) Release(ref VoiceRef, release float64) bool {
	v, err := r.Lookup(ref)
	if err != nil {
		r.logger.Debug("synth: release ignored", "ref", ref.String(), "error", err)
		return false
	}
	if v.releasing {
		return false
	}
	v.releasing = true
	RampTo(v.graph.Amplitude.Gain, 0, release)

	epoch := v.epoch
	v.teardown = r.ctx.AfterFunc(release, func() { r.teardown(v, epoch) })
	return true
}

// teardown runs when a release ramp ends. It only ever touches v; if v was
// replaced in the meantime, its graph is already disposed and the registry
// entry belongs to the newer voice.
func (r *Registry) teardown(v *Voice, epoch uint64) {
	if err := v.graph.Disconnect(); err != nil {
		if errors.Is(err, ErrGraphDisposed) {
			r.logger.Debug("synth: stale teardown", "id", v.ID, "handle", v.Handle)
		} else {
			r.logger.Warn("synth: teardown", "id", v.ID, "error", err)
		}
	}
	if cur, ok := r.voices[v.ID]; ok && cur.epoch == epoch {
		delete(r.voices, v.ID)
	}
	if r.handles[v.Handle] == v {
		delete(r.handles, v.Handle)
	}
}

func (r *Registry) dispose(v *Voice) {
	if err := v.graph.Disconnect(); err != nil && !errors.Is(err, ErrGraphDisposed) {
		r.logger.Warn("synth: dispose", "id", v.ID, "error", err)
	}
	if r.voices[v.ID] == v {
		delete(r.voices, v.ID)
	}
	delete(r.handles, v.Handle)
}

// Lookup resolves ref to a live voice.
func (r *Registry) Lookup(ref VoiceRef) (*Voice, error) {
	if ref.Handle != "" {
		if v, ok := r.handles[ref.Handle]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("%w: handle %s", ErrUnknownVoice, ref.Handle)
	}
	if v, ok := r.voices[ref.ID]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownVoice, ref.ID)
}

// State returns the state of the voice registered under id, or Idle.
func (r *Registry) State(id VoiceID) State {
	if v, ok := r.voices[id]; ok {
		return v.State()
	}
	return Idle
}

// ActiveVoices returns the live voices, including releasing ones, ordered by
// id.
func (r *Registry) ActiveVoices() []*Voice {
	out := make([]*Voice, 0, len(r.voices))
	for _, v := range r.voices {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b *Voice) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out
}

// Len returns the number of live voices.
func (r *Registry) Len() int { return len(r.voices) }

// Reset disposes every voice at once, without release ramps.
func (r *Registry) Reset() {
	for _, v := range r.ActiveVoices() {
		if v.teardown != nil {
			v.teardown.Stop()
		}
		r.dispose(v)
	}
}
