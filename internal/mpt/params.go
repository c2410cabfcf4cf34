// Package mpt implements the Maximum Phonation Time analysis pipeline: noise
// calibration, adaptive VAD configuration, the phonation boundary state
// machine, clinical classification and result assembly.
//
// Every analysis owns its own [Session]; nothing in this package keeps
// mutable package-level state, so any number of analyses may run
// concurrently against the same [Analyzer].
package mpt

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/MrWong99/mptmeter/pkg/audio"
	"github.com/MrWong99/mptmeter/pkg/provider/vad"
)

// Default tuning constants.
const (
	DefaultFrameDuration     = audio.DefaultFrameDuration
	DefaultCalibrationWindow = 500 * time.Millisecond
	DefaultSilenceTimeout    = 1500 * time.Millisecond
	DefaultMinValidDuration  = 2 * time.Second
)

// NoiseMode maps calibrated noise levels below Below to a VAD mode. A list of
// NoiseModes is evaluated in order; the first match wins.
type NoiseMode struct {
	Below float64
	Mode  vad.Mode
}

// UrgencyThresholds are the upper (exclusive) bounds of the clinical bands.
// Durations at or above ConcerningBelow are NORMAL.
type UrgencyThresholds struct {
	ImmediateBelow  time.Duration
	UrgentBelow     time.Duration
	ConcerningBelow time.Duration
}

// Params is the injectable configuration of one analysis. Values are copied
// into each session, so swapping the Params of an [Analyzer] never affects an
// analysis already in flight.
type Params struct {
	// FrameDuration is the VAD frame length: 10, 20 or 30 ms.
	FrameDuration time.Duration

	// CalibrationWindow is how much leading audio feeds the noise estimate.
	CalibrationWindow time.Duration

	// SilenceTimeout is the trailing silence that ends a phonation.
	SilenceTimeout time.Duration

	// MinValidDuration is the shortest phonation reported as a measurement.
	MinValidDuration time.Duration

	// NoiseModes selects the VAD aggressiveness from the noise level. Levels
	// at or above the last Below fall back to [vad.MaxMode].
	NoiseModes []NoiseMode

	// Urgency holds the clinical band boundaries.
	Urgency UrgencyThresholds
}

// DefaultNoiseModes returns the stock noise-to-mode table.
func DefaultNoiseModes() []NoiseMode {
	return []NoiseMode{
		{Below: 0.01, Mode: vad.ModeLowBitrate},
		{Below: 0.03, Mode: vad.ModeAggressive},
		{Below: 0.05, Mode: vad.ModeVeryAggressive},
	}
}

// DefaultParams returns the stock analysis parameters.
func DefaultParams() Params {
	return Params{
		FrameDuration:     DefaultFrameDuration,
		CalibrationWindow: DefaultCalibrationWindow,
		SilenceTimeout:    DefaultSilenceTimeout,
		MinValidDuration:  DefaultMinValidDuration,
		NoiseModes:        DefaultNoiseModes(),
		Urgency: UrgencyThresholds{
			ImmediateBelow:  8 * time.Second,
			UrgentBelow:     10 * time.Second,
			ConcerningBelow: 15 * time.Second,
		},
	}
}

// WithDefaults returns a copy of p with every zero field replaced by its
// default.
func (p Params) WithDefaults() Params {
	def := DefaultParams()
	if p.FrameDuration == 0 {
		p.FrameDuration = def.FrameDuration
	}
	if p.CalibrationWindow == 0 {
		p.CalibrationWindow = def.CalibrationWindow
	}
	if p.SilenceTimeout == 0 {
		p.SilenceTimeout = def.SilenceTimeout
	}
	if p.MinValidDuration == 0 {
		p.MinValidDuration = def.MinValidDuration
	}
	if len(p.NoiseModes) == 0 {
		p.NoiseModes = def.NoiseModes
	} else {
		p.NoiseModes = slices.Clone(p.NoiseModes)
	}
	if p.Urgency == (UrgencyThresholds{}) {
		p.Urgency = def.Urgency
	}
	return p
}

// Validate reports every inconsistency in p. The bands must be strictly
// increasing so that they partition [0, ∞) without overlap.
func (p Params) Validate() error {
	var errs []error
	switch p.FrameDuration {
	case 10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond:
	default:
		errs = append(errs, fmt.Errorf("frame_duration %s must be 10ms, 20ms or 30ms", p.FrameDuration))
	}
	if p.CalibrationWindow <= 0 {
		errs = append(errs, fmt.Errorf("calibration_window must be positive, got %s", p.CalibrationWindow))
	}
	if p.SilenceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("silence_timeout must be positive, got %s", p.SilenceTimeout))
	}
	if p.MinValidDuration < 0 {
		errs = append(errs, fmt.Errorf("min_valid_duration must not be negative, got %s", p.MinValidDuration))
	}

	prevBelow, prevMode := math.Inf(-1), vad.Mode(-1)
	for i, nm := range p.NoiseModes {
		// Adaptive selection uses modes 1 to 3 only.
		if nm.Mode < vad.ModeLowBitrate || nm.Mode > vad.MaxMode {
			errs = append(errs, fmt.Errorf("noise_modes[%d]: mode %d out of range [%d, %d]", i, nm.Mode, vad.ModeLowBitrate, vad.MaxMode))
		}
		if nm.Below <= prevBelow {
			errs = append(errs, fmt.Errorf("noise_modes[%d]: below %.4f must exceed previous %.4f", i, nm.Below, prevBelow))
		}
		if nm.Mode < prevMode {
			errs = append(errs, fmt.Errorf("noise_modes[%d]: mode %d lower than previous %d", i, nm.Mode, prevMode))
		}
		prevBelow, prevMode = nm.Below, nm.Mode
	}

	u := p.Urgency
	if !(p.MinValidDuration < u.ImmediateBelow && u.ImmediateBelow < u.UrgentBelow && u.UrgentBelow < u.ConcerningBelow) {
		errs = append(errs, fmt.Errorf("urgency bands must increase: min_valid %s < immediate %s < urgent %s < concerning %s",
			p.MinValidDuration, u.ImmediateBelow, u.UrgentBelow, u.ConcerningBelow))
	}
	return errors.Join(errs...)
}

// CalibrationFrames returns ceil(CalibrationWindow / FrameDuration).
func (p Params) CalibrationFrames() int {
	if p.FrameDuration <= 0 {
		return 0
	}
	return int((p.CalibrationWindow + p.FrameDuration - 1) / p.FrameDuration)
}

// vadConfig returns the detector configuration for a calibrated session.
func (p Params) vadConfig(cal CalibrationResult) vad.Config {
	return vad.Config{
		SampleRate:  audio.ContractSampleRate,
		FrameSizeMs: int(p.FrameDuration / time.Millisecond),
		Mode:        cal.VADMode,
		NoiseLevel:  cal.NoiseLevel,
	}
}
