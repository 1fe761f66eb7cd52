package logger

import (
	"strings"
	"testing"
)

func TestConfigApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Level != "info" {
		t.Errorf("expected info, got %q", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected console, got %q", cfg.Format)
	}
	if cfg.Output != "stdout" {
		t.Errorf("expected stdout, got %q", cfg.Output)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"valid json", Config{Level: "debug", Format: "json", Output: "stderr"}, ""},
		{"valid console", Config{Level: "info", Format: "console", Output: "stdout"}, ""},
		{"bad level", Config{Level: "verbose", Format: "json"}, "logging.level"},
		{"bad format", Config{Level: "info", Format: "xml"}, "logging.format"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFields(t *testing.T) {
	m := Fields("job_id", "j-1", "attempt", 2)
	if m["job_id"] != "j-1" || m["attempt"] != 2 {
		t.Errorf("unexpected map: %v", m)
	}

	// A trailing key without a value is dropped.
	m = Fields("only_key")
	if len(m) != 0 {
		t.Errorf("expected empty map, got %v", m)
	}
}
