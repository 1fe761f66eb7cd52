package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/skillsenselab/scribe/internal/apperr"
	"github.com/skillsenselab/scribe/internal/logger"
)

// Uploader stores audio payloads, trying each backend in order until one
// succeeds. An upload error is surfaced only when every backend fails.
type Uploader struct {
	backends []Storage
	log      *logger.Logger
}

// NewUploader creates an uploader over the given backends, tried in order.
func NewUploader(log *logger.Logger, backends ...Storage) *Uploader {
	return &Uploader{
		backends: backends,
		log:      log.WithComponent("storage"),
	}
}

// UploadAudio stores the audio bytes under a generated unique name and
// returns the public URL of the stored object.
func (u *Uploader) UploadAudio(ctx context.Context, data []byte, ext string) (string, error) {
	if ext == "" {
		ext = ".wav"
	}
	path := fmt.Sprintf("audio_%s%s", uuid.New(), ext)
	contentType := ContentType(ext)

	var lastErr error
	for i, backend := range u.backends {
		if err := backend.Upload(ctx, path, bytes.NewReader(data), contentType); err != nil {
			lastErr = err
			u.log.Warn("upload backend failed, trying next", map[string]interface{}{
				"backend": i,
				"path":    path,
				"error":   err.Error(),
			})
			continue
		}

		audioURL, err := backend.URL(ctx, path)
		if err != nil {
			lastErr = err
			continue
		}
		u.log.Debug("audio uploaded", map[string]interface{}{
			"path": path,
			"size": len(data),
		})
		return audioURL, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("storage: no backends configured")
	}
	return "", apperr.Upload(lastErr)
}
