//go:build cgo

// Package webrtc provides a [vad.Engine] backed by the WebRTC voice activity
// detector through github.com/maxhawkins/go-webrtcvad.
//
// The detector accepts 16-bit mono PCM at 8, 16, 32 or 48 kHz in frames of
// 10, 20 or 30 ms. Each session owns its own detector instance so concurrent
// analyses never share mutable C state.
package webrtc

import (
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/MrWong99/mptmeter/pkg/provider/vad"
)

// Name is the registry name of this engine.
const Name = "webrtc"

// Engine creates WebRTC VAD sessions. The zero value is ready to use.
type Engine struct{}

// New returns a WebRTC [Engine].
func New() *Engine { return &Engine{} }

// NewSession validates cfg and returns a detector set to cfg.Mode.
// NoiseLevel is ignored; the WebRTC detector tracks noise internally.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if err := vad.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtc vad: create: %w", err)
	}
	if err := v.SetMode(int(cfg.Mode)); err != nil {
		return nil, fmt.Errorf("webrtc vad: set mode %d: %w", cfg.Mode, err)
	}
	return &session{vad: v, rate: cfg.SampleRate, frameBytes: cfg.FrameBytes()}, nil
}

var _ vad.Engine = (*Engine)(nil)

type session struct {
	mu         sync.Mutex
	vad        *webrtcvad.VAD
	rate       int
	frameBytes int
	closed     bool
}

func (s *session) IsSpeech(frame []byte) (bool, error) {
	if len(frame) != s.frameBytes {
		return false, fmt.Errorf("webrtc vad: frame is %d bytes, want %d", len(frame), s.frameBytes)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, fmt.Errorf("webrtc vad: session closed")
	}
	return s.vad.Process(s.rate, frame)
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.vad = nil
	return nil
}
