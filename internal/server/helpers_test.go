package server_test

import (
	"encoding/binary"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/mptmeter/internal/mpt"
	"github.com/MrWong99/mptmeter/internal/observe"
	"github.com/MrWong99/mptmeter/internal/server"
	"github.com/MrWong99/mptmeter/pkg/provider/vad/energy"
)

const sampleRate = 16000

// tone returns secs of a full-scale-ish square wave at rate Hz, mono.
func tone(secs float64, rate int) []int16 {
	n := int(secs * float64(rate))
	out := make([]int16, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = 8000
		} else {
			out[i] = -8000
		}
	}
	return out
}

// silence returns secs of digital silence at rate Hz, mono.
func silence(secs float64, rate int) []int16 {
	return make([]int16, int(secs*float64(rate)))
}

// recording concatenates 0.6 s of lead-in silence, secs of tone and 2 s of
// trailing silence.
func recording(secs float64) []int16 {
	var s []int16
	s = append(s, silence(0.6, sampleRate)...)
	s = append(s, tone(secs, sampleRate)...)
	s = append(s, silence(2, sampleRate)...)
	return s
}

func pcmLE(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func pcmBE(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.BigEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// wavFile wraps mono samples at rate in a canonical 44-byte WAV header.
func wavFile(samples []int16, rate int) []byte {
	data := pcmLE(samples)
	buf := make([]byte, 44+len(data))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(data)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(rate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(rate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(data)))
	copy(buf[44:], data)
	return buf
}

// newServer returns a Server backed by the energy VAD and isolated metrics.
func newServer(t *testing.T, opts ...server.Option) *server.Server {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	a, err := mpt.NewAnalyzer(energy.New(energy.DefaultOptions()), mpt.DefaultParams(),
		mpt.WithMetrics(m), mpt.WithEngine("energy"))
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	return server.New(a, append([]server.Option{server.WithMetrics(m)}, opts...)...)
}

func newHTTPServer(t *testing.T, opts ...server.Option) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(newServer(t, opts...).Handler())
	t.Cleanup(ts.Close)
	return ts
}

// response mirrors the analysis JSON body.
type response struct {
	Success        bool    `json:"success"`
	ID             string  `json:"id"`
	MPT            float64 `json:"mpt"`
	Urgency        string  `json:"urgency"`
	Recommendation string  `json:"recommendation"`
	Classification struct {
		ESILevel int    `json:"esiLevel"`
		Color    string `json:"color"`
	} `json:"classification"`
	Debug struct {
		NoiseLevel  float64 `json:"noiseLevel"`
		VADMode     int     `json:"vadMode"`
		Termination string  `json:"termination"`
		Engine      string  `json:"engine"`
	} `json:"debug"`
	Warning string `json:"warning"`
	Error   string `json:"error"`
}
