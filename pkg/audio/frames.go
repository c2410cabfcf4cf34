package audio

import (
	"fmt"
	"iter"
	"time"
)

// DefaultFrameDuration is the frame length the WebRTC VAD family works best
// with. It is one of the three durations (10, 20, 30 ms) those detectors accept.
const DefaultFrameDuration = 30 * time.Millisecond

// SamplesPerFrame returns how many samples of f make up one frame of length d.
func SamplesPerFrame(f Format, d time.Duration) int {
	return int(int64(f.SampleRate) * int64(d) / int64(time.Second))
}

// FrameBytes returns the byte length of one mono contract frame of length d.
func FrameBytes(d time.Duration) int {
	return SamplesPerFrame(Contract, d) * BytesPerSample
}

// Frames returns a lazy sequence of contract frames covering pcm from left to
// right with no overlap and no gaps. The trailing remainder shorter than one
// frame is dropped rather than padded so the detector never judges padded
// silence. The sequence holds no state between iterations; ranging over it
// again restarts at the first frame.
//
// It fails with a wrapped [ErrFormatMismatch] when f is not [Contract] and
// with a plain error when d does not yield at least one sample.
func Frames(pcm []byte, f Format, d time.Duration) (iter.Seq[AudioFrame], error) {
	if err := CheckContract(f); err != nil {
		return nil, err
	}
	size := FrameBytes(d)
	if size <= 0 {
		return nil, fmt.Errorf("audio: frame duration %s too short for %d Hz", d, f.SampleRate)
	}

	return func(yield func(AudioFrame) bool) {
		for i := 0; (i+1)*size <= len(pcm); i++ {
			if !yield(newFrame(pcm[i*size:(i+1)*size], i, d)) {
				return
			}
		}
	}, nil
}

// CountFrames returns how many whole frames of length d fit in pcm.
func CountFrames(pcm []byte, d time.Duration) int {
	size := FrameBytes(d)
	if size <= 0 {
		return 0
	}
	return len(pcm) / size
}

// Segmenter cuts an incrementally delivered contract stream into frames. It
// carries any partial frame across calls to [Segmenter.Write]. Create one per
// stream; it is not safe for concurrent use.
type Segmenter struct {
	size    int
	dur     time.Duration
	pending []byte
	next    int
}

// NewSegmenter returns a [Segmenter] for frames of length d.
func NewSegmenter(d time.Duration) (*Segmenter, error) {
	size := FrameBytes(d)
	if size <= 0 {
		return nil, fmt.Errorf("audio: frame duration %s too short for %d Hz", d, ContractSampleRate)
	}
	return &Segmenter{size: size, dur: d}, nil
}

// Write appends p and returns every frame completed by it. Returned frames
// own their data.
func (s *Segmenter) Write(p []byte) []AudioFrame {
	s.pending = append(s.pending, p...)
	var out []AudioFrame
	for len(s.pending) >= s.size {
		data := make([]byte, s.size)
		copy(data, s.pending[:s.size])
		out = append(out, newFrame(data, s.next, s.dur))
		s.next++
		s.pending = s.pending[s.size:]
	}
	// Compact so the backing array does not grow without bound.
	if len(s.pending) == 0 {
		s.pending = s.pending[:0:0]
	}
	return out
}

// Pending returns the number of buffered bytes that do not yet form a frame.
// They are discarded if the stream ends.
func (s *Segmenter) Pending() int {
	return len(s.pending)
}

func newFrame(data []byte, index int, d time.Duration) AudioFrame {
	return AudioFrame{
		Data:       data,
		SampleRate: ContractSampleRate,
		Channels:   ContractChannels,
		Index:      index,
		Timestamp:  time.Duration(index) * d,
	}
}
