// Package storage provides object storage for uploaded audio, with a
// Supabase Storage backend and a local-filesystem fallback.
package storage

import (
	"context"
	"io"
	"strings"
)

// Storage defines the interface for audio object storage backends.
type Storage interface {
	// Upload writes data from reader to the given path.
	Upload(ctx context.Context, path string, reader io.Reader, contentType string) error

	// URL returns a public URL for accessing the object at the given path.
	URL(ctx context.Context, path string) (string, error)
}

// ContentType returns the audio content type for a file extension.
func ContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".aac":
		return "audio/aac"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".webm":
		return "audio/webm"
	default:
		return "audio/mpeg"
	}
}
