package vad

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidConfig is wrapped by every configuration rejection.
var ErrInvalidConfig = errors.New("vad: invalid session config")

// Mode is a VAD aggressiveness level, 0 (least) through 3 (most).
type Mode int

const (
	ModeQuality Mode = iota
	ModeLowBitrate
	ModeAggressive
	ModeVeryAggressive
)

// MaxMode is the most aggressive level any engine supports.
const MaxMode = ModeVeryAggressive

// Valid reports whether m is within [ModeQuality, MaxMode].
func (m Mode) Valid() bool {
	return m >= ModeQuality && m <= MaxMode
}

var (
	supportedRates      = []int{8000, 16000, 32000, 48000}
	supportedFrameSizes = []int{10, 20, 30}
)

// ValidateConfig checks cfg against the constraints shared by the WebRTC
// family of detectors. Engines with looser requirements may skip it.
func ValidateConfig(cfg Config) error {
	if !slices.Contains(supportedRates, cfg.SampleRate) {
		return fmt.Errorf("%w: sample rate %d not in %v", ErrInvalidConfig, cfg.SampleRate, supportedRates)
	}
	if !slices.Contains(supportedFrameSizes, cfg.FrameSizeMs) {
		return fmt.Errorf("%w: frame size %d ms not in %v", ErrInvalidConfig, cfg.FrameSizeMs, supportedFrameSizes)
	}
	if !cfg.Mode.Valid() {
		return fmt.Errorf("%w: mode %d out of range [0, %d]", ErrInvalidConfig, cfg.Mode, MaxMode)
	}
	if cfg.NoiseLevel < 0 || cfg.NoiseLevel > 1 {
		return fmt.Errorf("%w: noise level %.4f out of range [0, 1]", ErrInvalidConfig, cfg.NoiseLevel)
	}
	return nil
}

// FrameBytes returns the expected byte length of one 16-bit mono frame.
func (c Config) FrameBytes() int {
	return c.SampleRate * c.FrameSizeMs / 1000 * 2
}
