// Package energy provides a pure-Go [vad.Engine] that gates frames on their
// RMS level relative to the calibrated noise floor.
//
// A frame is speech when its normalised RMS exceeds
//
//	max(Floor[mode], NoiseLevel * Ratio[mode])
//
// where both tables grow with the aggressiveness mode. The decision is made
// per frame with no hysteresis; debouncing belongs to the caller.
package energy

import (
	"fmt"
	"math"

	"github.com/MrWong99/mptmeter/pkg/provider/vad"
)

// Name is the registry name of this engine.
const Name = "energy"

// Options tune the thresholds. Zero-valued fields fall back to the defaults.
type Options struct {
	// Floor is the absolute RMS threshold per mode, in [0, 1].
	Floor [4]float64

	// Ratio multiplies the noise level per mode.
	Ratio [4]float64
}

// DefaultOptions returns the thresholds used when none are configured.
func DefaultOptions() Options {
	return Options{
		Floor: [4]float64{0.004, 0.006, 0.010, 0.016},
		Ratio: [4]float64{1.5, 2.0, 3.0, 4.0},
	}
}

// Engine creates energy-gate sessions.
type Engine struct {
	opts Options
}

// New returns an [Engine]. Zero entries in opts are replaced by defaults.
func New(opts Options) *Engine {
	def := DefaultOptions()
	for i := range opts.Floor {
		if opts.Floor[i] <= 0 {
			opts.Floor[i] = def.Floor[i]
		}
		if opts.Ratio[i] <= 0 {
			opts.Ratio[i] = def.Ratio[i]
		}
	}
	return &Engine{opts: opts}
}

// Threshold returns the normalised RMS level a frame must exceed to count as
// speech under cfg.
func (e *Engine) Threshold(cfg vad.Config) float64 {
	m := cfg.Mode
	return math.Max(e.opts.Floor[m], cfg.NoiseLevel*e.opts.Ratio[m])
}

// NewSession validates cfg and returns a stateless detector.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if err := vad.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &session{threshold: e.Threshold(cfg), frameBytes: cfg.FrameBytes()}, nil
}

var _ vad.Engine = (*Engine)(nil)

type session struct {
	threshold  float64
	frameBytes int
}

func (s *session) IsSpeech(frame []byte) (bool, error) {
	if len(frame) != s.frameBytes {
		return false, fmt.Errorf("energy vad: frame is %d bytes, want %d", len(frame), s.frameBytes)
	}
	return RMS(frame) > s.threshold, nil
}

func (s *session) Close() error { return nil }

// RMS returns the root-mean-square level of little-endian int16 PCM,
// normalised to [0, 1].
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := float64(int16(pcm[i*2])|int16(pcm[i*2+1])<<8) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
