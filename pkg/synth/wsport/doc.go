// Package wsport serves a synth.Engine to a browser over WebSocket.
//
// Each connection gets its own engine and render clock. Text frames carry
// the tagged JSON messages of package synth in both directions. Binary
// frames carry 16-bit little-endian PCM: the server streams the rendered mix
// at the engine sample rate, and the browser streams microphone audio at the
// rate it announced in the micGrant answering an activateMic.
//
// The engine sample rate must be 16, 24, 44.1 or 48 kHz. A session starts
// with a ready message:
//
//	{"type": "ready", "payload": {"session": "...", "sampleRate": 48000, "format": "audio/L16; rate=48000; channels=1"}}
package wsport
