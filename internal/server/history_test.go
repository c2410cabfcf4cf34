package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/MrWong99/mptmeter/internal/server"
	"github.com/MrWong99/mptmeter/internal/store"
)

func newRecorder() *httptest.ResponseRecorder { return httptest.NewRecorder() }

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func TestHistory_RoundTrip(t *testing.T) {
	st := store.NewMemStore(0)
	ts := newHTTPServer(t, server.WithStore(st))

	_, first := post(t, ts.URL, "audio/wav", wavFile(recording(9), sampleRate))
	_, second := post(t, ts.URL, "audio/wav", wavFile(recording(16), sampleRate))
	if first.ID == "" || second.ID == "" {
		t.Fatalf("analyses were not stored: %q %q", first.ID, second.ID)
	}

	var list struct {
		Analyses []store.Record `json:"analyses"`
	}
	if code := getJSON(t, ts.URL+"/api/analyses", &list); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if len(list.Analyses) != 2 || list.Analyses[0].ID.String() != second.ID {
		t.Fatalf("list = %+v", list.Analyses)
	}
	if list.Analyses[0].Source != store.SourceUpload {
		t.Errorf("source = %q", list.Analyses[0].Source)
	}

	if code := getJSON(t, ts.URL+"/api/analyses?limit=1", &list); code != http.StatusOK || len(list.Analyses) != 1 {
		t.Errorf("limited list: status %d len %d", code, len(list.Analyses))
	}

	var rec store.Record
	if code := getJSON(t, ts.URL+"/api/analyses/"+first.ID, &rec); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if rec.Result.Urgency != "URGENT" {
		t.Errorf("stored urgency = %s", rec.Result.Urgency)
	}
}

func TestHistory_Errors(t *testing.T) {
	ts := newHTTPServer(t, server.WithStore(store.NewMemStore(0)))

	if code := getJSON(t, ts.URL+"/api/analyses/"+uuid.NewString(), nil); code != http.StatusNotFound {
		t.Errorf("unknown id: status %d, want 404", code)
	}
	if code := getJSON(t, ts.URL+"/api/analyses/not-a-uuid", nil); code != http.StatusBadRequest {
		t.Errorf("bad id: status %d, want 400", code)
	}
	if code := getJSON(t, ts.URL+"/api/analyses?limit=-1", nil); code != http.StatusBadRequest {
		t.Errorf("bad limit: status %d, want 400", code)
	}
}

func TestHistory_Disabled(t *testing.T) {
	ts := newHTTPServer(t)
	if code := getJSON(t, ts.URL+"/api/analyses", nil); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
	_, out := post(t, ts.URL, "audio/wav", wavFile(recording(9), sampleRate))
	if out.ID != "" {
		t.Errorf("id %q returned without a store", out.ID)
	}
}
