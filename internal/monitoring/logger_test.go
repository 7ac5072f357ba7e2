package monitoring

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// Now set to nil and verify it doesn't call our logger
	called = false
	SetLogger(nil)
	Logf("test")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}

	var buf bytes.Buffer
	prev := Logger()
	defer SetStructuredLogger(prev)
	SetStructuredLogger(NewLogger(&buf, "info", "text"))

	slogf("analysed %d samples", 3)
	if !strings.Contains(buf.String(), "analysed 3 samples") {
		t.Errorf("expected message in output, got %q", buf.String())
	}
}

func TestSetStructuredLogger_Nil(t *testing.T) {
	prev := Logger()
	defer SetStructuredLogger(prev)

	SetStructuredLogger(nil)
	if Logger() == nil {
		t.Fatal("Logger should never be nil")
	}
	// must not panic
	Logger().Info("dropped", "k", 1)
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "debug", "json").Debug("hello", "instrument", "diag9_default")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"instrument":"diag9_default"`) {
		t.Errorf("missing field in %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
