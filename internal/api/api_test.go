package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/scribe/internal/apperr"
	"github.com/skillsenselab/scribe/internal/assembly"
	"github.com/skillsenselab/scribe/internal/diarize"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/protocol"
	"github.com/skillsenselab/scribe/internal/storage"
	"github.com/skillsenselab/scribe/internal/store"
	"github.com/skillsenselab/scribe/internal/transcribe"
)

type memBackend struct{}

func (memBackend) Upload(_ context.Context, _ string, reader io.Reader, _ string) error {
	_, err := io.Copy(io.Discard, reader)
	return err
}

func (memBackend) URL(_ context.Context, path string) (string, error) {
	return "https://store.example/" + path, nil
}

type instantProvider struct{}

func (instantProvider) Submit(context.Context, string, assembly.Options) (string, error) {
	return "job-1", nil
}

func (instantProvider) Poll(context.Context, string) (*assembly.Transcript, error) {
	return &assembly.Transcript{
		ID: "job-1", Status: assembly.StatusCompleted, Text: "Hi.",
		Confidence: 0.9, AudioDuration: 1000, LanguageCode: "en",
	}, nil
}

type failingProvider struct{}

func (failingProvider) Submit(context.Context, string, assembly.Options) (string, error) {
	return "job-1", nil
}

func (failingProvider) Poll(context.Context, string) (*assembly.Transcript, error) {
	return &assembly.Transcript{ID: "job-1", Status: assembly.StatusError, Error: "bad audio"}, nil
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(protocol.Message) {}

func newTestRouter(t *testing.T, provider transcribe.Provider) (*gin.Engine, *store.Repository) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewDefault("test")

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"), log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	repo := store.NewRepository(db, log)

	uploader := storage.NewUploader(log, memBackend{})
	orchestrator := transcribe.New(
		transcribe.Config{PollInterval: time.Millisecond},
		provider, repo, nopBroadcaster{}, nil, log,
	)

	router := gin.New()
	router.Use(CORS([]string{"*"}))
	NewHandler(repo, uploader, orchestrator, log).Register(router)
	return router, repo
}

func seedTranscript(t *testing.T, repo *store.Repository) *store.Transcript {
	t.Helper()
	utterances := []diarize.Utterance{
		{Speaker: "A", Text: "Hello there, nice to meet you today.", Start: 0, End: 4, Duration: 4, WordCount: 7},
		{Speaker: "B", Text: "Likewise.", Start: 4, End: 6, Duration: 2, WordCount: 1},
	}
	doc, err := store.AsJSON(utterances)
	if err != nil {
		t.Fatalf("as json: %v", err)
	}

	now := time.Now()
	rec := &store.Transcript{
		AudioURL:      "https://store.example/audio_1.wav",
		Transcript:    "Hello there, nice to meet you today. Likewise.",
		Utterances:    doc,
		SpeakersCount: 2,
		AudioDuration: 10,
		Status:        "completed",
		CompletedAt:   &now,
	}
	speakers := []store.Speaker{
		{SpeakerLabel: "A", TotalWords: 7, TotalDuration: 4, ConfidenceScore: 0.95},
		{SpeakerLabel: "B", TotalWords: 1, TotalDuration: 2, ConfidenceScore: 0.9},
	}
	if err := repo.SaveResult(context.Background(), rec, speakers); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return rec
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, instantProvider{})
	w := doJSON(router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestUploadAudio(t *testing.T) {
	router, _ := newTestRouter(t, instantProvider{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "meeting.mp3")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fw.Write([]byte("fake audio"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload-audio", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	url, _ := resp["audio_url"].(string)
	if !strings.HasPrefix(url, "https://store.example/audio_") || !strings.HasSuffix(url, ".mp3") {
		t.Errorf("unexpected audio_url: %q", url)
	}
}

func TestUploadAudioMissingFile(t *testing.T) {
	router, _ := newTestRouter(t, instantProvider{})
	w := doJSON(router, http.MethodPost, "/api/upload-audio", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestTranscribeSync(t *testing.T) {
	router, repo := newTestRouter(t, instantProvider{})

	w := doJSON(router, http.MethodPost, "/api/transcribe",
		map[string]string{"audio_url": "https://store.example/audio_1.wav"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result transcribe.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Transcript != "Hi." {
		t.Errorf("unexpected transcript: %q", result.Transcript)
	}
	if result.AudioDuration != 1 {
		t.Errorf("expected 1s audio duration, got %g", result.AudioDuration)
	}
	// The provider returned no utterances; the job still completes.
	if result.SpeakersCount != 0 {
		t.Errorf("expected 0 speakers, got %d", result.SpeakersCount)
	}

	stored, err := repo.List(context.Background(), 1, 10, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("expected the result persisted, got %d rows", len(stored))
	}
}

func TestTranscribeSyncMissingURL(t *testing.T) {
	router, _ := newTestRouter(t, instantProvider{})
	w := doJSON(router, http.MethodPost, "/api/transcribe", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestTranscribeSyncProviderFailure(t *testing.T) {
	router, _ := newTestRouter(t, failingProvider{})
	w := doJSON(router, http.MethodPost, "/api/transcribe",
		map[string]string{"audio_url": "https://store.example/audio_1.wav"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "transcription_error") {
		t.Errorf("expected error_type in body: %s", w.Body.String())
	}
}

func TestGetAndDeleteTranscript(t *testing.T) {
	router, repo := newTestRouter(t, instantProvider{})
	rec := seedTranscript(t, repo)

	w := doJSON(router, http.MethodGet, "/api/transcripts/"+rec.ID.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doJSON(router, http.MethodDelete, "/api/transcripts/"+rec.ID.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", w.Code)
	}

	w = doJSON(router, http.MethodGet, "/api/transcripts/"+rec.ID.String(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}

func TestSpeakersWithPercentage(t *testing.T) {
	router, repo := newTestRouter(t, instantProvider{})
	rec := seedTranscript(t, repo)

	w := doJSON(router, http.MethodGet, "/api/transcripts/"+rec.ID.String()+"/speakers", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Speakers []struct {
			Speaker            string  `json:"speaker"`
			SpeakingPercentage float64 `json:"speaking_percentage"`
		} `json:"speakers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Speakers) != 2 {
		t.Fatalf("expected 2 speakers, got %d", len(resp.Speakers))
	}
	// 4s of 10s audio.
	if resp.Speakers[0].SpeakingPercentage != 40 {
		t.Errorf("expected 40%%, got %g", resp.Speakers[0].SpeakingPercentage)
	}
}

func TestSubtitleEndpoints(t *testing.T) {
	router, repo := newTestRouter(t, instantProvider{})
	rec := seedTranscript(t, repo)

	w := doJSON(router, http.MethodGet, "/api/transcripts/"+rec.ID.String()+"/srt", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "[Speaker A]") {
		t.Errorf("expected speaker prefix in SRT: %s", body)
	}
	if !strings.Contains(body, "00:00:00,000 -->") {
		t.Errorf("expected SRT timestamps: %s", body)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, ".srt") {
		t.Errorf("expected srt attachment, got %q", cd)
	}

	w = doJSON(router, http.MethodGet, "/api/transcripts/"+rec.ID.String()+"/vtt?chars_per_caption=20", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "WEBVTT") {
		t.Errorf("expected WEBVTT header: %s", w.Body.String())
	}
}

func TestSubtitleUnknownTranscript(t *testing.T) {
	router, _ := newTestRouter(t, instantProvider{})
	w := doJSON(router, http.MethodGet, "/api/transcripts/00000000-0000-0000-0000-000000000001/srt", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, instantProvider{})

	req := httptest.NewRequest(http.MethodOptions, "/api/transcripts", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("unexpected allow-origin: %q", got)
	}
}

func TestStatusForMapping(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindProtocol, http.StatusBadRequest},
		{apperr.KindDecode, http.StatusBadRequest},
		{apperr.KindCapacity, http.StatusServiceUnavailable},
		{apperr.KindUpload, http.StatusBadGateway},
		{apperr.KindSubmit, http.StatusBadGateway},
		{apperr.KindPollTransport, http.StatusBadGateway},
		{apperr.KindProviderJob, http.StatusUnprocessableEntity},
		{apperr.KindPersistence, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := statusFor(tc.kind); got != tc.want {
			t.Errorf("statusFor(%s) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}
