// Package audio holds the PCM primitives shared by the analysis pipeline: the
// fixed input contract, the [AudioFrame] unit the voice-activity detector
// works on, the frame segmenter, and the format adaptation helpers used by
// callers that receive audio in some other shape (WAV containers, stereo,
// 44.1 kHz microphones).
//
// The analysis core only ever sees audio that satisfies [Contract]; everything
// else in this package exists to get audio into that shape or to slice it.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Fixed pipeline contract. The upstream conversion step must deliver exactly
// this; the segmenter rejects anything else.
const (
	ContractSampleRate = 16000
	ContractChannels   = 1
	ContractBitDepth   = 16

	// BytesPerSample is the width of one contract sample.
	BytesPerSample = ContractBitDepth / 8
)

// ErrFormatMismatch is returned when audio does not satisfy [Contract].
var ErrFormatMismatch = errors.New("audio: format does not match pipeline contract")

// Format describes the sample rate, channel count and bit depth of a PCM
// stream. A zero BitDepth is treated as 16.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Contract is the only format the analysis core accepts: 16 kHz, mono,
// 16-bit little-endian signed PCM.
var Contract = Format{
	SampleRate: ContractSampleRate,
	Channels:   ContractChannels,
	BitDepth:   ContractBitDepth,
}

// bitDepth returns f.BitDepth with the zero value mapped to 16.
func (f Format) bitDepth() int {
	if f.BitDepth == 0 {
		return 16
	}
	return f.BitDepth
}

// String returns e.g. "16000Hz mono 16-bit".
func (f Format) String() string {
	return fmt.Sprintf("%s %d-bit", formatString(f.SampleRate, f.Channels), f.bitDepth())
}

// CheckContract returns nil when f equals [Contract] and a wrapped
// [ErrFormatMismatch] naming the offending property otherwise.
func CheckContract(f Format) error {
	switch {
	case f.SampleRate != ContractSampleRate:
		return fmt.Errorf("%w: sample rate %d Hz, want %d Hz", ErrFormatMismatch, f.SampleRate, ContractSampleRate)
	case f.Channels != ContractChannels:
		return fmt.Errorf("%w: %d channels, want mono", ErrFormatMismatch, f.Channels)
	case f.bitDepth() != ContractBitDepth:
		return fmt.Errorf("%w: %d-bit samples, want %d-bit", ErrFormatMismatch, f.bitDepth(), ContractBitDepth)
	}
	return nil
}

// AudioFrame is a fixed-length slice of PCM samples cut from a recording.
// Frames produced by the segmenter always hold exactly the configured number
// of samples; short trailing remainders are never turned into frames.
type AudioFrame struct {
	// Data is little-endian int16 PCM. It aliases the source buffer; callers
	// that keep a frame past the lifetime of the buffer must copy it.
	Data []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for every frame the segmenter emits.
	Channels int

	// Index is the zero-based position of the frame in its recording.
	Index int

	// Timestamp is the offset of the frame's first sample from the start of
	// the recording.
	Timestamp time.Duration
}

// NumSamples returns the number of int16 samples in the frame.
func (f AudioFrame) NumSamples() int {
	return len(f.Data) / BytesPerSample
}

// Sample returns the i-th sample as a signed 16-bit value.
func (f AudioFrame) Sample(i int) int16 {
	return int16(binary.LittleEndian.Uint16(f.Data[i*BytesPerSample:]))
}

// MeanAbsAmplitude returns the mean of |sample| across the frame in raw
// int16 units. An empty frame yields 0.
func (f AudioFrame) MeanAbsAmplitude() float64 {
	n := f.NumSamples()
	if n == 0 {
		return 0
	}
	var sum int64
	for i := range n {
		s := int64(f.Sample(i))
		if s < 0 {
			s = -s
		}
		sum += s
	}
	return float64(sum) / float64(n)
}
