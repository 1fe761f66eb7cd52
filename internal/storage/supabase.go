package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SupabaseConfig holds Supabase Storage configuration.
type SupabaseConfig struct {
	// URL is the Supabase project URL (e.g. https://xyz.supabase.co).
	URL string `mapstructure:"url"`

	// Bucket is the storage bucket name.
	Bucket string `mapstructure:"bucket"`

	// SecretKey is the service-role key used as Bearer token.
	SecretKey string `mapstructure:"secret_key"`
}

// Supabase implements Storage using the Supabase Storage REST API.
type Supabase struct {
	baseURL    string
	bucket     string
	secretKey  string
	httpClient *http.Client
}

// NewSupabase creates a new Supabase storage client.
func NewSupabase(cfg SupabaseConfig) (*Supabase, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("storage: supabase url is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: supabase bucket is required")
	}
	return &Supabase{
		baseURL:   strings.TrimRight(cfg.URL, "/") + "/storage/v1",
		bucket:    cfg.Bucket,
		secretKey: cfg.SecretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Upload writes data from reader to Supabase storage.
func (s *Supabase) Upload(ctx context.Context, path string, reader io.Reader, contentType string) error {
	u := fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, reader)
	if err != nil {
		return fmt.Errorf("storage: supabase create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("storage: supabase upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("storage: supabase upload failed (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// URL returns the public URL for the object.
func (s *Supabase) URL(_ context.Context, path string) (string, error) {
	return fmt.Sprintf("%s/object/public/%s/%s", s.baseURL, s.bucket, path), nil
}

// compile-time check
var _ Storage = (*Supabase)(nil)
