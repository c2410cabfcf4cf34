package server_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"
	"net/http"
	"strings"
	"testing"

	"github.com/MrWong99/mptmeter/internal/server"
)

func post(t *testing.T, url, contentType string, body []byte) (*http.Response, response) {
	t.Helper()
	resp, err := http.Post(url+"/api/analyze-mpt", contentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp, out
}

func jsonBody(t *testing.T, audioData string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]string{"audio_data": audioData})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func assertUrgent(t *testing.T, out response) {
	t.Helper()
	if !out.Success {
		t.Fatalf("success = false: %s", out.Error)
	}
	if out.Urgency != "URGENT" || out.Classification.Color != "ORANGE" || out.Classification.ESILevel != 2 {
		t.Errorf("got urgency %s color %s esi %d, want URGENT/ORANGE/2",
			out.Urgency, out.Classification.Color, out.Classification.ESILevel)
	}
	if math.Abs(out.MPT-9) > 0.1 {
		t.Errorf("mpt = %.2f, want ≈9", out.MPT)
	}
	if out.Debug.Termination != "silence_timeout" || out.Debug.Engine != "energy" {
		t.Errorf("debug = %+v", out.Debug)
	}
}

func TestAnalyze_Base64JSON(t *testing.T) {
	ts := newHTTPServer(t)
	enc := base64.StdEncoding.EncodeToString(wavFile(recording(9), sampleRate))
	resp, out := post(t, ts.URL, "application/json", jsonBody(t, enc))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, out.Error)
	}
	assertUrgent(t, out)
}

func TestAnalyze_DataURL(t *testing.T) {
	ts := newHTTPServer(t)
	enc := "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(wavFile(recording(9), sampleRate))
	resp, out := post(t, ts.URL, "application/json", jsonBody(t, enc))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, out.Error)
	}
	assertUrgent(t, out)
}

func TestAnalyze_RawWAVAt48k(t *testing.T) {
	ts := newHTTPServer(t)
	var s []int16
	s = append(s, silence(0.6, 48000)...)
	s = append(s, tone(9, 48000)...)
	s = append(s, silence(2, 48000)...)
	resp, out := post(t, ts.URL, "audio/wav", wavFile(s, 48000))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, out.Error)
	}
	if out.Urgency != "URGENT" {
		t.Errorf("urgency = %s (mpt %.2f), want URGENT", out.Urgency, out.MPT)
	}
}

func TestAnalyze_L16BigEndian(t *testing.T) {
	ts := newHTTPServer(t)
	resp, out := post(t, ts.URL, "audio/L16; rate=16000; channels=1", pcmBE(recording(9)))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, out.Error)
	}
	assertUrgent(t, out)
}

func TestAnalyze_NoSpeechIsInvalidResult(t *testing.T) {
	ts := newHTTPServer(t)
	resp, out := post(t, ts.URL, "audio/wav", wavFile(silence(3, sampleRate), sampleRate))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !out.Success || out.Urgency != "INVALID" || out.MPT != 0 {
		t.Errorf("got %+v", out)
	}
	if out.Classification.Color != "GRAY" || !strings.Contains(out.Warning, "no speech") {
		t.Errorf("color %q warning %q", out.Classification.Color, out.Warning)
	}
	if out.Debug.Termination != "no_speech" {
		t.Errorf("termination = %q", out.Debug.Termination)
	}
}

func TestAnalyze_BadRequests(t *testing.T) {
	ts := newHTTPServer(t)
	tests := []struct {
		name        string
		contentType string
		body        []byte
		wantErr     string
	}{
		{"missing audio", "application/json", []byte(`{}`), "No audio data provided"},
		{"empty audio", "application/json", []byte(`{"audio_data":""}`), "No audio data provided"},
		{"bad base64", "application/json", []byte(`{"audio_data":"!!!"}`), "base64"},
		{"not json", "application/json", []byte(`audio`), "invalid JSON"},
		{"not wav", "audio/wav", []byte("OggS garbage garbage"), "WAV"},
		{"unsupported type", "audio/ogg", []byte("x"), "unsupported Content-Type"},
		{"bad L16 rate", "audio/L16; rate=abc", []byte{0, 0}, "invalid rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := post(t, ts.URL, tt.contentType, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			if out.Success || !strings.Contains(out.Error, tt.wantErr) {
				t.Errorf("error = %q, want substring %q", out.Error, tt.wantErr)
			}
		})
	}
}

func TestAnalyze_TooLarge(t *testing.T) {
	ts := newHTTPServer(t, server.WithMaxUploadBytes(1024))
	resp, out := post(t, ts.URL, "audio/wav", wavFile(silence(0.2, sampleRate), sampleRate))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}
	if out.Success {
		t.Error("success should be false")
	}
}

func TestAnalyze_CORS(t *testing.T) {
	ts := newHTTPServer(t, server.WithCORSOrigins([]string{"https://clinic.example"}))

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/analyze-mpt", nil)
	req.Header.Set("Origin", "https://clinic.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://clinic.example" {
		t.Errorf("allow origin = %q", got)
	}

	req, _ = http.NewRequest(http.MethodOptions, ts.URL+"/api/analyze-mpt", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got header %q", got)
	}
}

func TestServer_SetCORSOrigins(t *testing.T) {
	srv := newServer(t)
	h := srv.Handler()
	srv.SetCORSOrigins([]string{"*"})

	req, _ := http.NewRequest(http.MethodOptions, "/api/analyze-mpt", nil)
	req.Header.Set("Origin", "https://any.example")
	rec := newRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q, want *", got)
	}
}
