package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func captureLogger(buf *bytes.Buffer) *Logger {
	return &Logger{logger: zerolog.New(buf)}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	sl := NewSecurityLogger(NewNop())

	if got := sl.MaskAPIKey(""); got != "unset" {
		t.Errorf("Expected unset, got %s", got)
	}

	masked := sl.MaskAPIKey("super-secret-key")
	if strings.Contains(masked, "super-secret") {
		t.Errorf("Expected key to be masked, got %s", masked)
	}
	if masked != sl.MaskAPIKey("super-secret-key") {
		t.Error("Expected masking to be stable")
	}
}

func TestMaskAPIEndpoint(t *testing.T) {
	sl := NewSecurityLogger(NewNop())

	masked := sl.MaskAPIEndpoint("https://serp.example.com/v1/search?token=abc")
	if !strings.HasPrefix(masked, "serp.example.com/api#") {
		t.Errorf("Expected host to be kept, got %s", masked)
	}
	if strings.Contains(masked, "token") {
		t.Errorf("Expected query to be hidden, got %s", masked)
	}
	if got := sl.MaskAPIEndpoint(""); got != "" {
		t.Errorf("Expected empty string, got %s", got)
	}
}

func TestSafeInfo_MasksFields(t *testing.T) {
	var buf bytes.Buffer
	sl := NewSecurityLogger(captureLogger(&buf))

	sl.SafeInfo("connecting with api_key=abc123", map[string]interface{}{
		"serp_api_key":  "abc123",
		"serp_endpoint": "https://serp.example.com/search",
		"batch_size":    5,
	})
	sl.SafeWarn("token: xyz789", nil)

	out := buf.String()
	if strings.Contains(out, "abc123") || strings.Contains(out, "xyz789") {
		t.Errorf("Expected credentials to be masked, got %s", out)
	}
	if !strings.Contains(out, `"batch_size":5`) {
		t.Errorf("Expected non-sensitive fields to be kept, got %s", out)
	}
}

func TestProgressReporter(t *testing.T) {
	var buf bytes.Buffer
	pr := NewProgressReporter(4, "Resolving keywords", captureLogger(&buf))

	pr.SetCurrent(2)
	current, total, pct := pr.GetProgress()
	if current != 2 || total != 4 || pct != 50 {
		t.Errorf("Expected 2/4 (50%%), got %d/%d (%.1f%%)", current, total, pct)
	}

	pr.SetCurrent(4)
	if !strings.Contains(buf.String(), "Resolving keywords: 4/4 (100.0%)") {
		t.Errorf("Expected completion line, got %s", buf.String())
	}
}

func TestProgressReporter_EmptyTotal(t *testing.T) {
	pr := NewProgressReporter(0, "Nothing", NewNop())

	if _, _, pct := pr.GetProgress(); pct != 100 {
		t.Errorf("Expected 100%%, got %.1f%%", pct)
	}
}
