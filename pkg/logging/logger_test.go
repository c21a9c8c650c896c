package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Level = %s, want info", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Pretty = true, want JSON output by default")
	}
	if cfg.Output == nil {
		t.Error("Output = nil, want stderr")
	}
}

func TestSetup_WritesJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelDebug, Output: buf})
	defer Setup(DefaultConfig())

	logger := NewLogger("pagination")
	logger.Debug().Str("url", "http://cas.test/api/cases/?page=2").Msg("Fetched page")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}

	want := map[string]string{
		"level":     "debug",
		"component": "pagination",
		"url":       "http://cas.test/api/cases/?page=2",
		"message":   "Fetched page",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %q", k, entry[k], v)
		}
	}
	if _, ok := entry["time"]; !ok {
		t.Error("entry has no timestamp")
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})
	defer Setup(DefaultConfig())

	logger := NewLogger("view")
	logger.Info().Str("page", "transfers").Msg("Page loaded")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("pretty output looks like JSON: %q", out)
	}
	if !strings.Contains(out, "Page loaded") || !strings.Contains(out, "transfers") {
		t.Errorf("output = %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level   LogLevel
		visible []string
		hidden  []string
	}{
		{level: LevelDebug, visible: []string{"claim", "drained", "lookup failed"}},
		{level: LevelInfo, visible: []string{"drained", "lookup failed"}, hidden: []string{"claim"}},
		{level: LevelWarn, visible: []string{"lookup failed"}, hidden: []string{"claim", "drained"}},
		{level: LevelError, hidden: []string{"claim", "drained", "lookup failed"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			Setup(Config{Level: tt.level, Output: buf})
			defer Setup(DefaultConfig())

			logger := NewLogger("test")
			logger.Debug().Msg("claim")
			logger.Info().Msg("drained")
			logger.Warn().Msg("lookup failed")

			out := buf.String()
			for _, msg := range tt.visible {
				if !strings.Contains(out, `"`+msg+`"`) {
					t.Errorf("%q missing at level %s", msg, tt.level)
				}
			}
			for _, msg := range tt.hidden {
				if strings.Contains(out, `"`+msg+`"`) {
					t.Errorf("%q logged at level %s", msg, tt.level)
				}
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLogLevelValidate(t *testing.T) {
	tests := []struct {
		level   LogLevel
		wantErr bool
	}{
		{"", false},
		{"debug", false},
		{"Warning", false},
		{"verbose", true},
	}

	for _, tt := range tests {
		if err := tt.level.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("LogLevel(%q).Validate() error = %v, wantErr %v", tt.level, err, tt.wantErr)
		}
	}
}
