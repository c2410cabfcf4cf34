//go:build !cgo

package webrtc

import (
	"errors"

	"github.com/MrWong99/mptmeter/pkg/provider/vad"
)

// Name is the registry name of this engine.
const Name = "webrtc"

// ErrUnavailable is returned by NewSession in builds without cgo.
var ErrUnavailable = errors.New("webrtc vad: built without cgo; use the energy engine")

// Engine is a placeholder that refuses to create sessions when cgo is off.
type Engine struct{}

// New returns an [Engine] whose sessions always fail with [ErrUnavailable].
func New() *Engine { return &Engine{} }

// NewSession always returns [ErrUnavailable].
func (e *Engine) NewSession(vad.Config) (vad.SessionHandle, error) {
	return nil, ErrUnavailable
}

var _ vad.Engine = (*Engine)(nil)
