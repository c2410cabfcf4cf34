package mpt

import (
	"github.com/MrWong99/mptmeter/pkg/audio"
	"github.com/MrWong99/mptmeter/pkg/provider/vad"
)

// maxAmplitude is the largest magnitude of a signed 16-bit sample.
const maxAmplitude = 32768.0

// CalibrationResult is the ambient noise estimate of one session and the VAD
// aggressiveness chosen for it. It is immutable once returned.
type CalibrationResult struct {
	// NoiseLevel is the mean absolute amplitude of the calibration window
	// normalised to [0, 1].
	NoiseLevel float64

	// VADMode is the aggressiveness selected from NoiseLevel.
	VADMode vad.Mode

	// Frames is the number of frames the estimate was computed from.
	Frames int

	// Insufficient is set when fewer frames than the window requires were
	// available.
	Insufficient bool
}

// Calibrator accumulates the calibration window frame by frame.
type Calibrator struct {
	need  int
	modes []NoiseMode
	n     int
	sum   float64
}

// NewCalibrator returns a Calibrator for p's window and mode table.
func NewCalibrator(p Params) *Calibrator {
	return &Calibrator{need: p.CalibrationFrames(), modes: p.NoiseModes}
}

// Add folds f into the estimate. It returns true once the window is full;
// frames added after that are ignored.
func (c *Calibrator) Add(f audio.AudioFrame) bool {
	if c.Full() {
		return true
	}
	c.sum += f.MeanAbsAmplitude()
	c.n++
	return c.Full()
}

// Full reports whether the calibration window has been consumed.
func (c *Calibrator) Full() bool {
	return c.n >= c.need
}

// Result returns the estimate over the frames added so far. Calling it before
// the window is full yields a result flagged Insufficient.
func (c *Calibrator) Result() CalibrationResult {
	var level float64
	if c.n > 0 {
		level = min(c.sum/float64(c.n)/maxAmplitude, 1)
	}
	return CalibrationResult{
		NoiseLevel:   level,
		VADMode:      SelectVADMode(level, c.modes),
		Frames:       c.n,
		Insufficient: !c.Full(),
	}
}

// Calibrate estimates ambient noise from the leading frames. Frames past the
// window are ignored; a short slice is calibrated on what is there.
func Calibrate(frames []audio.AudioFrame, p Params) CalibrationResult {
	c := NewCalibrator(p)
	for _, f := range frames {
		if c.Add(f) {
			break
		}
	}
	return c.Result()
}

// SelectVADMode maps a noise level to a VAD mode using the first entry of
// modes whose Below exceeds level. Levels past the table saturate at
// [vad.MaxMode]. The result is non-decreasing in level for any table that
// passes [Params.Validate].
func SelectVADMode(level float64, modes []NoiseMode) vad.Mode {
	for _, m := range modes {
		if level < m.Below {
			return m.Mode
		}
	}
	return vad.MaxMode
}
