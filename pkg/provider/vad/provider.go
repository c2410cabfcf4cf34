// Package vad defines the Engine interface for Voice Activity Detection backends.
//
// A VAD engine wraps a frame-level speech/non-speech classifier (WebRTC VAD,
// an energy gate, or a learned model) and surfaces it as a per-session
// detector. Aggressiveness is a session setting: two analyses running side by
// side may use different modes against the same engine.
//
// VAD is synchronous: IsSpeech returns immediately with a binary decision,
// which keeps the phonation boundary detector a simple single-pass loop.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle should not be shared across goroutines unless the
// implementation explicitly documents thread safety for that type.
package vad

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the PCM
	// frames passed to IsSpeech.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds. WebRTC
	// style detectors accept 10, 20 or 30 ms only.
	FrameSizeMs int

	// Mode is the aggressiveness level. Higher values filter more non-speech
	// at the risk of clipping soft voicing.
	Mode Mode

	// NoiseLevel is the calibrated ambient noise estimate in [0, 1]. Engines
	// that do not adapt to noise ignore it.
	NoiseLevel float64
}

// SessionHandle is a configured detector for a single audio stream. It is an
// interface so that test code can supply scripted implementations.
type SessionHandle interface {
	// IsSpeech classifies one frame of little-endian int16 PCM at the
	// session's SampleRate and FrameSizeMs. It must not block.
	IsSpeech(frame []byte) (bool, error)

	// Close releases all resources associated with the session. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions. It is the top-level interface
// implemented by each VAD backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may call
// NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a detector with the given configuration. Returns an
	// error wrapping [ErrInvalidConfig] for unsupported rates, frame sizes or
	// modes.
	NewSession(cfg Config) (SessionHandle, error)
}
