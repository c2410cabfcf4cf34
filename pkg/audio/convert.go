package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// ToContract adapts 16-bit interleaved PCM in format from to [Contract]. It
// downmixes first, then resamples, so the interpolation only ever runs over a
// single channel. Audio already in contract format is returned unchanged.
func ToContract(pcm []byte, from Format) ([]byte, error) {
	if from.bitDepth() != ContractBitDepth {
		return nil, fmt.Errorf("%w: cannot adapt %d-bit PCM, decode to 16-bit first", ErrFormatMismatch, from.bitDepth())
	}
	if from.SampleRate <= 0 || from.Channels <= 0 {
		return nil, fmt.Errorf("%w: invalid source format %s", ErrFormatMismatch, from)
	}
	if len(pcm)%(BytesPerSample*from.Channels) != 0 {
		return nil, fmt.Errorf("audio: %d bytes is not a whole number of %d-channel samples", len(pcm), from.Channels)
	}

	out := pcm
	if from.Channels != ContractChannels {
		out = DownmixToMono(out, from.Channels)
	}
	if from.SampleRate != ContractSampleRate {
		out = ResampleMono16(out, from.SampleRate, ContractSampleRate)
	}
	return out, nil
}

// Converter adapts a chunked stream in a fixed source format to [Contract].
// It logs once on the first chunk that needs converting and once on the first
// misaligned chunk. Create one per stream; not designed for shared use
// across goroutines.
type Converter struct {
	Source Format

	// Log receives the one-off conversion warnings. Nil means slog.Default().
	Log *slog.Logger

	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Convert adapts one chunk. Chunks whose length is not a whole number of
// source samples are dropped (nil is returned). Chunk-wise resampling
// interpolates within the chunk only, which is accurate enough for VAD input.
func (c *Converter) Convert(chunk []byte) []byte {
	if CheckContract(c.Source) == nil {
		return chunk
	}
	c.warnedMismatch.Do(func() {
		c.logger().Warn("audio stream not in contract format: converting",
			"from", c.Source.String(),
			"to", Contract.String(),
		)
	})
	out, err := ToContract(chunk, c.Source)
	if err != nil {
		c.warnedCorrupt.Do(func() {
			c.logger().Warn("audio converter: dropping chunk", "bytes", len(chunk), "err", err)
		})
		return nil
	}
	return out
}

func (c *Converter) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}

// DownmixToMono averages every group of channels interleaved samples into one
// mono sample. Input must be little-endian int16 PCM. Uses int32 arithmetic
// to prevent overflow and clamps to int16 range.
func DownmixToMono(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	stride := channels * BytesPerSample
	frames := len(pcm) / stride
	out := make([]byte, frames*BytesPerSample)
	for i := range frames {
		var sum int32
		for ch := range channels {
			off := i*stride + ch*BytesPerSample
			sum += int32(int16(pcm[off]) | int16(pcm[off+1])<<8)
		}
		avg := clamp16(sum / int32(channels))
		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. The input must be little-endian int16 samples. If srcRate ==
// dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		s1 := s0
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}

func clamp16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
