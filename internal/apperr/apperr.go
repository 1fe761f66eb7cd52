// Package apperr provides the coded error type used across the service.
// Every failure stage of a transcription request maps to exactly one Kind,
// so callers branch on kind rather than matching message strings. Client
// replies carry the Kind and a stable message; the underlying cause is for
// logs only.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error kind. The string value is what goes on
// the wire as error_type.
type Kind string

const (
	// KindDecode indicates a malformed inbound payload encoding.
	KindDecode Kind = "decode_error"
	// KindUpload indicates a storage write failed with all fallbacks exhausted.
	KindUpload Kind = "upload_error"
	// KindSubmit indicates the provider rejected the job submission.
	KindSubmit Kind = "submit_error"
	// KindPollTransport indicates a network failure while polling.
	KindPollTransport Kind = "poll_transport_error"
	// KindProviderJob indicates the provider reported a terminal job failure.
	KindProviderJob Kind = "transcription_error"
	// KindPersistence indicates the durable write failed after a successful job.
	KindPersistence Kind = "persistence_error"
	// KindProtocol indicates an unknown or structurally invalid message.
	KindProtocol Kind = "protocol_error"
	// KindJSONDecode indicates an inbound frame that is not valid JSON.
	KindJSONDecode Kind = "json_decode_error"
	// KindCapacity indicates the connection registry is full.
	KindCapacity Kind = "capacity_exceeded"
)

// Error is the unified application error type.
type Error struct {
	// Kind is the machine-readable error kind.
	Kind Kind
	// Message is a stable, client-safe message.
	Message string
	// Details contains additional client-safe context.
	Details map[string]any
	// Cause is the underlying error. Never sent to clients.
	Cause error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error { return e.Cause }

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates an Error with the given kind and client-safe message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf extracts the Kind from err, or "" when err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	ok := errors.As(err, &ae)
	return ae, ok
}

// --- Stage constructors ---

// Decode creates an error for a malformed base64 audio payload.
func Decode(cause error) *Error {
	return &Error{Kind: KindDecode, Message: "Failed to decode audio data.", Cause: cause}
}

// Upload creates an error for a failed storage upload.
func Upload(cause error) *Error {
	return &Error{Kind: KindUpload, Message: "Upload failed.", Cause: cause}
}

// Submit creates an error for a rejected provider submission.
func Submit(cause error) *Error {
	return &Error{Kind: KindSubmit, Message: "Failed to submit transcription request.", Cause: cause}
}

// PollTransport creates an error for a network failure while polling.
func PollTransport(cause error) *Error {
	return &Error{Kind: KindPollTransport, Message: "Lost contact with the transcription provider.", Cause: cause}
}

// ProviderJob creates an error for a provider-reported job failure.
// providerMessage is the provider's own description of the failure and is
// considered client-safe.
func ProviderJob(providerMessage string) *Error {
	if providerMessage == "" {
		providerMessage = "Unknown error occurred"
	}
	return &Error{Kind: KindProviderJob, Message: fmt.Sprintf("Transcription failed: %s", providerMessage)}
}

// Persistence creates an error for a failed durable write after a
// successful transcription.
func Persistence(cause error) *Error {
	return &Error{Kind: KindPersistence, Message: "Transcription completed but the result could not be saved.", Cause: cause}
}

// Protocol creates an error for an unknown or invalid inbound message.
func Protocol(message string) *Error {
	return &Error{Kind: KindProtocol, Message: message}
}

// JSONDecode creates an error for an inbound frame that is not valid JSON.
func JSONDecode(cause error) *Error {
	return &Error{Kind: KindJSONDecode, Message: "Invalid JSON format", Cause: cause}
}

// Capacity creates an error for a connection attempt beyond the maximum.
func Capacity() *Error {
	return &Error{Kind: KindCapacity, Message: "Too many connections"}
}
