package assembly

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/skillsenselab/scribe/internal/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{APIKey: "key-123", BaseURL: srv.URL}, logger.NewDefault("test"))
	return c, srv
}

func TestSubmit(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(Transcript{ID: "job-42", Status: StatusQueued})
	})

	id, err := c.Submit(context.Background(), "https://cdn.example/a.wav", DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "job-42" {
		t.Errorf("expected job-42, got %q", id)
	}
	if gotPath != "/v2/transcript" {
		t.Errorf("unexpected path: %q", gotPath)
	}
	if gotAuth != "key-123" {
		t.Errorf("unexpected auth header: %q", gotAuth)
	}
	if gotBody["audio_url"] != "https://cdn.example/a.wav" {
		t.Errorf("unexpected audio_url: %v", gotBody["audio_url"])
	}
	for _, flag := range []string{"speaker_labels", "language_detection", "punctuate", "format_text"} {
		if gotBody[flag] != true {
			t.Errorf("expected %s=true in submission, got %v", flag, gotBody[flag])
		}
	}
}

func TestSubmitRejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	})

	_, err := c.Submit(context.Background(), "https://cdn.example/a.wav", DefaultOptions())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 401") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestSubmitMissingJobID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(Transcript{Status: StatusQueued})
	})

	if _, err := c.Submit(context.Background(), "u", DefaultOptions()); err == nil {
		t.Fatal("expected error for missing job id")
	}
}

func TestPoll(t *testing.T) {
	var gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(Transcript{
			ID:     "job-42",
			Status: StatusCompleted,
			Text:   "done",
			Utterances: []Utterance{
				{Speaker: "A", Text: "done", Start: 0, End: 1500},
			},
		})
	})

	tr, err := c.Poll(context.Background(), "job-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v2/transcript/job-42" {
		t.Errorf("unexpected path: %q", gotPath)
	}
	if tr.Status != StatusCompleted || tr.Text != "done" {
		t.Errorf("unexpected transcript: %+v", tr)
	}
	if tr.Utterances[0].End != 1500 {
		t.Errorf("expected millisecond timings preserved, got %d", tr.Utterances[0].End)
	}
}

func TestTerminal(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{StatusQueued, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusError, true},
	}
	for _, tc := range tests {
		if got := Terminal(tc.status); got != tc.want {
			t.Errorf("Terminal(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}
