//go:build cgo

package webrtc_test

import (
	"errors"
	"math"
	"testing"

	"github.com/MrWong99/mptmeter/pkg/provider/vad"
	"github.com/MrWong99/mptmeter/pkg/provider/vad/webrtc"
)

func cfg(mode vad.Mode) vad.Config {
	return vad.Config{SampleRate: 16000, FrameSizeMs: 30, Mode: mode}
}

func TestNewSession_RejectsBadConfig(t *testing.T) {
	e := webrtc.New()
	bad := cfg(vad.ModeQuality)
	bad.FrameSizeMs = 25
	if _, err := e.NewSession(bad); !errors.Is(err, vad.ErrInvalidConfig) {
		t.Fatalf("got %v, want ErrInvalidConfig", err)
	}
}

func TestSession_SilenceIsNotSpeech(t *testing.T) {
	for m := vad.ModeQuality; m <= vad.MaxMode; m++ {
		s, err := webrtc.New().NewSession(cfg(m))
		if err != nil {
			t.Fatalf("mode %d: NewSession: %v", m, err)
		}
		speech, err := s.IsSpeech(make([]byte, 960))
		if err != nil {
			t.Fatalf("mode %d: IsSpeech: %v", m, err)
		}
		if speech {
			t.Errorf("mode %d: digital silence classified as speech", m)
		}
		s.Close()
	}
}

func TestSession_WrongFrameLength(t *testing.T) {
	s, err := webrtc.New().NewSession(cfg(vad.ModeAggressive))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.IsSpeech(make([]byte, 100)); err == nil {
		t.Fatal("expected error for short frame")
	}
}

func TestSession_ClosedRejectsFrames(t *testing.T) {
	s, err := webrtc.New().NewSession(cfg(vad.ModeAggressive))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	tone := make([]byte, 960)
	for i := range 480 {
		v := int16(8000 * math.Sin(2*math.Pi*220*float64(i)/16000))
		tone[i*2] = byte(v)
		tone[i*2+1] = byte(v >> 8)
	}
	if _, err := s.IsSpeech(tone); err == nil {
		t.Fatal("expected error after Close")
	}
}
