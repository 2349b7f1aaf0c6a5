// Package synth is the voice and analysis engine of a browser-hosted
// synthesizer.
//
// The Engine allocates voices keyed by caller-supplied ids, shapes their
// amplitude with linear attack and release ramps, samples their analyser taps
// on a cadence, and relays spectra to an offload worker that estimates
// dominant frequencies.
//
// # Voices
//
// Each voice owns a small graph: its source feeds a gain stage that reaches
// the destination, and an analyser tap sits parallel to the gain so analysis
// sees the raw signal. Press ramps the gain from 0 to SustainLevel. Release
// ramps it back to 0 and schedules teardown on the render clock exactly when
// the ramp ends. A second press of a live id replaces the old voice and
// disconnects it immediately; the old voice's pending teardown then finds
// its graph already disposed and leaves the new voice alone.
//
// # Cadence
//
// Sampling requests are queued and served by Tick, which the host calls once
// per display frame. There is no polling loop inside the engine: a disposed
// voice simply stops appearing in the active set.
//
// # Messages
//
// The UI talks to the engine with tagged JSON messages:
//
//	{"type": "notePress", "payload": {"id": "A4", "frequency": 440, "attack": 0.05, "waveShape": "sine"}}
//	{"type": "noteRelease", "payload": {"handle": "...", "release": 0.3}}
//
// Handle dispatches inbound messages and the Emitter receives outbound ones.
//
// # Concurrency
//
// One mutex serializes all graph work. Render advances the clock and runs due
// teardowns under that lock. Acquiring a microphone is the only operation that
// waits on the outside world and it does so without holding the lock.
package synth
