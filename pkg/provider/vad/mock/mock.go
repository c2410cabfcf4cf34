// Package mock provides test doubles for the vad package interfaces.
//
// Use Engine to verify that sessions are created with the expected Config.
// Use Session to script per-frame decisions and inspect the frames that were
// submitted for classification.
//
// Example:
//
//	sess := &mock.Session{Script: mock.Pattern(mock.Run(false, 17), mock.Run(true, 100))}
//	eng := &mock.Engine{Session: sess}
//	handle, _ := eng.NewSession(cfg)
package mock

import (
	"sync"

	"github.com/MrWong99/mptmeter/pkg/provider/vad"
)

// NewSessionCall records a single invocation of Engine.NewSession.
type NewSessionCall struct {
	// Cfg is the Config passed to NewSession.
	Cfg vad.Config
}

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by NewSession. If nil, NewSession
	// returns a new default Session.
	Session vad.SessionHandle

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// NewSessionCalls records every call to NewSession in order.
	NewSessionCalls []NewSessionCall
}

// NewSession records the call and returns Session, NewSessionErr.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = append(e.NewSessionCalls, NewSessionCall{Cfg: cfg})
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Reset clears all recorded calls. Thread-safe.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = nil
}

// Ensure Engine implements vad.Engine at compile time.
var _ vad.Engine = (*Engine)(nil)

// Run returns n copies of decision.
func Run(decision bool, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = decision
	}
	return out
}

// Pattern concatenates runs into a single script.
func Pattern(runs ...[]bool) []bool {
	var out []bool
	for _, r := range runs {
		out = append(out, r...)
	}
	return out
}

// Session is a mock implementation of vad.SessionHandle. Each IsSpeech call
// returns the next entry of Script; once the script is exhausted it returns
// Default.
type Session struct {
	mu sync.Mutex

	// Script holds the decision for each successive IsSpeech call.
	Script []bool

	// Default is returned once Script is exhausted.
	Default bool

	// Errs maps a zero-based call number to an error returned for that call.
	// The decision for an erroring call is false.
	Errs map[int]error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// Frames holds a copy of every frame passed to IsSpeech in order.
	Frames [][]byte

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// IsSpeech records the frame and returns the next scripted decision.
func (s *Session) IsSpeech(frame []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.Frames)
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.Frames = append(s.Frames, cp)
	if err := s.Errs[n]; err != nil {
		return false, err
	}
	if n < len(s.Script) {
		return s.Script[n], nil
	}
	return s.Default, nil
}

// Calls returns how many frames were classified. Thread-safe.
func (s *Session) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Frames)
}

// Close records the call and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// ResetCalls clears all recorded call history. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Frames = nil
	s.CloseCallCount = 0
}

// Ensure Session implements vad.SessionHandle at compile time.
var _ vad.SessionHandle = (*Session)(nil)
