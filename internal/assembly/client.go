// Package assembly is a minimal client for the AssemblyAI v2 transcript
// API: submit a job, poll its status. The service treats the provider as an
// opaque asynchronous job source; no retries, no streaming.
package assembly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/skillsenselab/scribe/internal/logger"
)

const defaultBaseURL = "https://api.assemblyai.com"

// Config holds client configuration.
type Config struct {
	// APIKey is the AssemblyAI API key, forwarded as the authorization header.
	APIKey string `mapstructure:"api_key"`

	// BaseURL overrides the API endpoint. Mainly for tests.
	BaseURL string `mapstructure:"base_url"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `mapstructure:"timeout"`
}

// ApplyDefaults applies default values to client configuration.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// Client talks to the AssemblyAI v2 transcript API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new AssemblyAI client.
func NewClient(cfg Config, log *logger.Logger) *Client {
	cfg.ApplyDefaults()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.WithComponent("assembly"),
	}
}

type submitRequest struct {
	AudioURL string `json:"audio_url"`
	Options
}

// Submit sends one transcription request and returns the provider job id.
// A non-success response is terminal; the caller does not retry.
func (c *Client) Submit(ctx context.Context, audioURL string, opts Options) (string, error) {
	body, err := json.Marshal(submitRequest{AudioURL: audioURL, Options: opts})
	if err != nil {
		return "", fmt.Errorf("assembly: marshal submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("assembly: create submit request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("assembly: submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("assembly: submit failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var t Transcript
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return "", fmt.Errorf("assembly: decode submit response: %w", err)
	}
	if t.ID == "" {
		return "", fmt.Errorf("assembly: submit response missing job id")
	}

	c.log.Debug("job submitted", map[string]interface{}{"job_id": t.ID})
	return t.ID, nil
}

// Poll issues one status request for the given job id.
func (c *Client) Poll(ctx context.Context, jobID string) (*Transcript, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v2/transcript/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("assembly: create poll request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assembly: poll: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("assembly: poll failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var t Transcript
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, fmt.Errorf("assembly: decode poll response: %w", err)
	}
	return &t, nil
}
