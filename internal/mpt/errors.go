package mpt

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAudio is the only hard failure of an analysis: the input does
	// not satisfy the 16 kHz mono 16-bit PCM contract.
	ErrInvalidAudio = errors.New("mpt: invalid audio")

	// ErrInsufficientCalibration marks a recording shorter than the
	// calibration window. It is recovered locally and only surfaces as
	// Debug.CalibrationInsufficient.
	ErrInsufficientCalibration = errors.New("mpt: recording shorter than calibration window")

	// ErrNoSpeechDetected is carried by an INVALID result whose stream ended
	// before any speech frame.
	ErrNoSpeechDetected = errors.New("mpt: no speech detected")

	// ErrTooShort is carried by an INVALID result whose phonation was shorter
	// than the minimum valid duration.
	ErrTooShort = errors.New("mpt: phonation too short to measure")
)

// InvalidAudioError describes why input audio was rejected. It matches both
// [ErrInvalidAudio] and the underlying cause with [errors.Is].
type InvalidAudioError struct {
	Reason string
	Err    error
}

func (e *InvalidAudioError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mpt: invalid audio: %s: %v", e.Reason, e.Err)
	}
	return "mpt: invalid audio: " + e.Reason
}

func (e *InvalidAudioError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidAudio}
	}
	return []error{ErrInvalidAudio, e.Err}
}

func invalidAudio(reason string, err error) error {
	return &InvalidAudioError{Reason: reason, Err: err}
}
