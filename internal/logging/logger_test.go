package logging

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
)

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	fn()
	return buf.String()
}

func TestLogger_LevelFiltering(t *testing.T) {
	if err := Initialize("warn"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	logger := GetLogger("test")

	out := captureOutput(t, func() {
		logger.Debug("debug message")
		logger.Info("info message")
		logger.Warn("warn message")
		logger.Error("error message")
	})

	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("Expected debug/info to be filtered at warn level, got: %s", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("Expected warn/error to be logged, got: %s", out)
	}
}

func TestLogger_StructuredFields(t *testing.T) {
	if err := Initialize("info"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	logger := GetLogger("test").WithField("endpoint", "https://mcp.example.com/sse")

	out := captureOutput(t, func() {
		logger.InfoWithFields("tool call finished",
			Field("tool", "ping"),
			Field("duration_ms", 12),
		)
	})

	for _, want := range []string{"tool call finished", "endpoint=https://mcp.example.com/sse", "tool=ping", "duration_ms=12"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestLogger_ContextTraceID(t *testing.T) {
	if err := Initialize("info"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	ctx := context.WithValue(context.Background(), TraceIDKey(), "trace-123")
	logger := GetLogger("test").WithContext(ctx)

	out := captureOutput(t, func() {
		logger.Info("dialing endpoint")
	})

	if !strings.Contains(out, "trace_id=trace-123") {
		t.Errorf("Expected trace_id in output, got: %s", out)
	}
}

func TestPackageLogLevels(t *testing.T) {
	if err := Initialize("info", map[string]string{
		"client.sse": "debug",
		"proxy.*":    "error",
	}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer func() {
		_ = SetPackageLogLevels(nil)
		packageLogLevels = make(map[string]LogLevel)
	}()

	tests := []struct {
		pkg      string
		expected LogLevel
	}{
		{"client.sse", DEBUG},
		{"proxy.http", ERROR},
		{"proxy.stdio", ERROR},
		{"unrelated", LogLevel(-1)},
	}

	for _, tt := range tests {
		if got := GetPackageLogLevel(tt.pkg); got != tt.expected {
			t.Errorf("GetPackageLogLevel(%q) = %d, want %d", tt.pkg, got, tt.expected)
		}
	}
}

func TestSetPackageLogLevels_InvalidLevel(t *testing.T) {
	err := SetPackageLogLevels(map[string]string{"client": "loud"})
	if err == nil {
		t.Fatal("Expected error for invalid level")
	}
}
