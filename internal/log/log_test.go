package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		logFn   func(l Logger)
		want    []string
		notWant []string
	}{
		{
			name:  "text format includes message and attrs",
			cfg:   Config{},
			logFn: func(l Logger) { l.Info("course indexed", "title", "Go Basics") },
			want:  []string{"course indexed", "title=", "Go Basics"},
		},
		{
			name:    "debug suppressed at default level",
			cfg:     Config{},
			logFn:   func(l Logger) { l.Debug("chunk detail") },
			notWant: []string{"chunk detail"},
		},
		{
			name:  "debug visible when level lowered",
			cfg:   Config{Level: slog.LevelDebug},
			logFn: func(l Logger) { l.Debug("chunk detail") },
			want:  []string{"chunk detail"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, tt.cfg)
			tt.logFn(logger)

			got := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output missing %q, got: %s", w, got)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(got, nw) {
					t.Errorf("output should not contain %q, got: %s", nw, got)
				}
			}
		})
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{JSON: true})
	logger.Info("query answered", "session", "abc")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["msg"] != "query answered" {
		t.Errorf("msg = %v, want %q", entry["msg"], "query answered")
	}
	if entry["session"] != "abc" {
		t.Errorf("session = %v, want %q", entry["session"], "abc")
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	// Must not panic and must not write anywhere visible.
	logger.Info("discarded")
	logger.Error("also discarded")
}
