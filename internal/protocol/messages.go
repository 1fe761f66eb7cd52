// Package protocol defines the JSON messages exchanged with WebSocket
// clients. Every outbound message carries a status and a human-readable
// message; some statuses attach extra fields.
package protocol

import "github.com/skillsenselab/scribe/internal/apperr"

// Outbound status values.
const (
	StatusStarting      = "starting"
	StatusSubmitted     = "submitted"
	StatusProcessing    = "processing"
	StatusReceived      = "received"
	StatusUploading     = "uploading"
	StatusUploaded      = "uploaded"
	StatusCompleted     = "completed"
	StatusError         = "error"
	StatusPing          = "ping"
	StatusNewTranscript = "new_transcript"
	StatusSuccess       = "success"
)

// Inbound message types.
const (
	TypeTranscribe     = "transcribe"
	TypeGetTranscripts = "get_transcripts"
	TypeGetTranscript  = "get_transcript"
)

// ValidTypes enumerates the accepted inbound message types, in the order
// they are reported to clients.
var ValidTypes = []string{TypeTranscribe, TypeGetTranscripts, TypeGetTranscript}

// Inbound is a client request, discriminated by Type.
type Inbound struct {
	Type          string `json:"type"`
	AudioData     string `json:"audio_data"`
	FileExtension string `json:"file_extension"`
	Filename      string `json:"filename"`
	Page          int    `json:"page"`
	Limit         int    `json:"limit"`
	TranscriptID  string `json:"transcript_id"`
}

// Message is one outbound status update.
type Message struct {
	Status         string   `json:"status"`
	Message        string   `json:"message"`
	Data           any      `json:"data,omitempty"`
	ErrorType      string   `json:"error_type,omitempty"`
	Details        any      `json:"details,omitempty"`
	AudioURL       string   `json:"audio_url,omitempty"`
	TranscriptID   string   `json:"transcript_id,omitempty"`
	Preview        string   `json:"preview,omitempty"`
	AvailableTypes []string `json:"available_types,omitempty"`
}

// Status builds a plain status update.
func Status(status, message string) Message {
	return Message{Status: status, Message: message}
}

// Error builds the terminal error message for a stage failure. Only the
// kind's stable message and client-safe details go on the wire.
func Error(ae *apperr.Error) Message {
	return Message{
		Status:    StatusError,
		Message:   ae.Message,
		ErrorType: string(ae.Kind),
		Details:   ae.Details,
	}
}

// Ping builds the keepalive probe sent on read-idle timeout.
func Ping() Message {
	return Status(StatusPing, "Connection keepalive")
}
