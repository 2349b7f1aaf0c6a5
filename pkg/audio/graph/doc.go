// Package graph is a small pull-based audio rendering graph modeled on the
// browser's Web Audio API.
//
// A Context owns the render clock. Time only advances when Render is called,
// in quanta of RenderQuantum frames, so every automation curve and deferred
// action is sample-accurate and fully deterministic under test.
//
// Nodes:
//
//   - Oscillator: periodic generator (sine, square, sawtooth, triangle) with
//     an automatable Frequency param and Start/Stop scheduling.
//   - StreamSource: plays samples pulled from an external SampleSource, such
//     as a captured microphone stream.
//   - Gain: multiplies its input by an automatable Gain param.
//   - Analyser: passes its input through unchanged and keeps the latest
//     FFTSize samples for time-domain and frequency-domain snapshots.
//   - Destination: the sink; Render returns what reaches it.
//
// Analysers are rendered every quantum whether or not their output leads to
// the destination, so a tap wired parallel to a gain observes the signal
// independently of what is audible.
//
// Timers created with AfterFunc fire on the render clock at the first quantum
// boundary at or after their deadline, on the goroutine calling Render.
//
// A Context and its nodes are not safe for concurrent use. Callers serialize
// access, typically with one mutex around all graph work.
package graph
