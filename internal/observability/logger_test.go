package observability

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies that parseLogLevel correctly parses log level
// strings from environment variables, handling case-insensitivity and whitespace.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		env    string
		expect zapcore.Level
	}{
		{"", zap.InfoLevel},
		{"INFO", zap.InfoLevel},
		{"DEBUG", zap.DebugLevel},
		{"WARN", zap.WarnLevel},
		{"ERROR", zap.ErrorLevel},
		{"debug", zap.DebugLevel},
		{"  warn  ", zap.WarnLevel},
		{"invalid", zap.InfoLevel},
	}
	for _, tt := range tests {
		level := parseLogLevel(tt.env)
		if got := level.Level(); got != tt.expect {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.env, got, tt.expect)
		}
	}
}

// TestNewLogger verifies NewLogger builds a usable logger for both encodings.
func TestNewLogger(t *testing.T) {
	for _, enc := range []string{"", "console"} {
		t.Setenv("LOG_ENCODING", enc)
		logger, err := NewLogger()
		if err != nil {
			t.Fatalf("NewLogger() encoding=%q error = %v", enc, err)
		}
		logger.Info("test message")
		_ = FlushLogs(logger) // best-effort; can fail on /dev/stderr in test env
	}
}

// TestFlushLogs_NilLogger verifies flushing a nil logger is a no-op.
func TestFlushLogs_NilLogger(t *testing.T) {
	if err := FlushLogs(nil); err != nil {
		t.Errorf("FlushLogs(nil) error = %v", err)
	}
}
