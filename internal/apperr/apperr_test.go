package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestStageConstructorKinds(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"decode", Decode(cause), KindDecode},
		{"upload", Upload(cause), KindUpload},
		{"submit", Submit(cause), KindSubmit},
		{"poll transport", PollTransport(cause), KindPollTransport},
		{"provider job", ProviderJob("bad audio"), KindProviderJob},
		{"persistence", Persistence(cause), KindPersistence},
		{"protocol", Protocol("nope"), KindProtocol},
		{"json decode", JSONDecode(cause), KindJSONDecode},
		{"capacity", Capacity(), KindCapacity},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Kind != tc.kind {
				t.Errorf("expected kind %q, got %q", tc.kind, tc.err.Kind)
			}
			if tc.err.Message == "" {
				t.Error("expected a client-safe message")
			}
		})
	}
}

func TestProviderJobMessage(t *testing.T) {
	if got := ProviderJob("audio too short").Message; got != "Transcription failed: audio too short" {
		t.Errorf("unexpected message: %q", got)
	}
	if got := ProviderJob("").Message; got != "Transcription failed: Unknown error occurred" {
		t.Errorf("unexpected default message: %q", got)
	}
}

func TestCauseStaysOutOfMessage(t *testing.T) {
	cause := errors.New("connect tcp 10.0.0.5: refused")
	ae := Upload(cause)
	if strings.Contains(ae.Message, "10.0.0.5") {
		t.Error("cause leaked into the client-safe message")
	}
	if !errors.Is(ae, cause) {
		t.Error("expected cause in the unwrap chain")
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("stage: %w", Submit(errors.New("rejected")))
	if got := KindOf(wrapped); got != KindSubmit {
		t.Errorf("expected %q through wrapping, got %q", KindSubmit, got)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("expected empty kind for plain error, got %q", got)
	}
}

func TestWithDetail(t *testing.T) {
	ae := Capacity().WithDetail("max_connections", 100)
	if ae.Details["max_connections"] != 100 {
		t.Errorf("expected detail to be set, got %v", ae.Details)
	}
}
