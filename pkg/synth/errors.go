package synth

import "errors"

var (
	// ErrAcquisitionDenied is returned when a capture stream could not be
	// acquired. No voice is registered.
	ErrAcquisitionDenied = errors.New("synth: acquisition denied")

	// ErrUnknownVoice is returned by lookups of ids or handles with no live
	// voice. Public operations treat it as a no-op.
	ErrUnknownVoice = errors.New("synth: unknown voice")

	// ErrGraphDisposed is returned when disconnecting a graph twice.
	ErrGraphDisposed = errors.New("synth: graph already disposed")

	// ErrOffloadUnavailable is logged when the offload worker fails to start.
	// Frequency estimates are then not produced.
	ErrOffloadUnavailable = errors.New("synth: offload unavailable")

	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("synth: engine closed")
)
