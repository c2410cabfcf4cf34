package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNotWAV is returned when a buffer is not a RIFF/WAVE PCM container.
var ErrNotWAV = errors.New("audio: not a valid PCM WAV file")

// wavFormatPCM is the WAVE_FORMAT_PCM tag.
const wavFormatPCM = 1

// DecodeWAV reads a PCM WAV container and returns its samples as interleaved
// little-endian int16 together with the source format. 24- and 32-bit files
// are narrowed to 16 bits; the returned Format always reports 16-bit.
func DecodeWAV(r io.ReadSeeker) ([]byte, Format, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, Format{}, ErrNotWAV
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, Format{}, fmt.Errorf("%w: compression tag %d", ErrNotWAV, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return nil, Format{}, ErrNotWAV
	}

	depth := int(dec.BitDepth)
	pcm, err := intsToPCM16(buf, depth)
	if err != nil {
		return nil, Format{}, err
	}
	return pcm, Format{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		BitDepth:   ContractBitDepth,
	}, nil
}

// LoadWAV decodes a WAV container and adapts it to [Contract]. This is the
// format-conversion collaborator for callers that hold WAV bytes.
func LoadWAV(data []byte) ([]byte, Format, error) {
	pcm, src, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		return nil, Format{}, err
	}
	out, err := ToContract(pcm, src)
	if err != nil {
		return nil, src, err
	}
	return out, src, nil
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// EncodeWAV wraps contract PCM in a canonical 44-byte WAV header.
func EncodeWAV(w io.WriteSeeker, pcm []byte) error {
	enc := wav.NewEncoder(w, ContractSampleRate, ContractBitDepth, ContractChannels, wavFormatPCM)
	n := len(pcm) / BytesPerSample
	data := make([]int, n)
	for i := range n {
		data[i] = int(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: ContractChannels, SampleRate: ContractSampleRate},
		Data:           data,
		SourceBitDepth: ContractBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: encode wav: %w", err)
	}
	return enc.Close()
}

func intsToPCM16(buf *goaudio.IntBuffer, depth int) ([]byte, error) {
	var shift int
	switch depth {
	case 16:
	case 24:
		shift = 8
	case 32:
		shift = 16
	default:
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrFormatMismatch, depth)
	}
	out := make([]byte, len(buf.Data)*BytesPerSample)
	for i, v := range buf.Data {
		s := int16(v >> shift)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out, nil
}
