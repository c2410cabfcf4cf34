package mpt_test

import (
	"encoding/binary"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/mptmeter/internal/mpt"
	"github.com/MrWong99/mptmeter/internal/observe"
	"github.com/MrWong99/mptmeter/pkg/provider/vad"
	"github.com/MrWong99/mptmeter/pkg/provider/vad/mock"
)

const (
	frameSamples = 480
	calFrames    = 17
)

// seconds converts a float number of seconds to a Duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// framesOf returns the number of 30 ms frames in d, rounded to nearest.
func framesOf(d time.Duration) int {
	return int((d + 15*time.Millisecond) / (30 * time.Millisecond))
}

// squarePCM returns n samples alternating +amp/-amp: mean |x| and RMS are
// both amp.
func squarePCM(n int, amp int16) []byte {
	buf := make([]byte, n*2)
	for i := range n {
		v := amp
		if i%2 == 1 {
			v = -amp
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

// silentFrames returns n frames of digital silence.
func silentFrames(n int) []byte {
	return make([]byte, n*frameSamples*2)
}

// scripted returns a mock engine whose single session replays script after
// calibration, plus the session for inspection.
func scripted(t *testing.T, script ...[]bool) (*mock.Engine, *mock.Session) {
	t.Helper()
	sess := &mock.Session{Script: mock.Pattern(script...)}
	return &mock.Engine{Session: sess}, sess
}

// newAnalyzer builds an Analyzer with default params and isolated metrics.
func newAnalyzer(t *testing.T, eng vad.Engine) *mpt.Analyzer {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	a, err := mpt.NewAnalyzer(eng, mpt.DefaultParams(), mpt.WithMetrics(m), mpt.WithEngine("test"))
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	return a
}
