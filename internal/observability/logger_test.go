package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		logMsg string
		level  string
		want   bool // whether we expect the message to appear
	}{
		{
			name:   "info level logs info",
			cfg:    Config{Level: "info", Format: "json"},
			logMsg: "test message",
			level:  "info",
			want:   true,
		},
		{
			name:   "info level does not log debug",
			cfg:    Config{Level: "info", Format: "json"},
			logMsg: "test message",
			level:  "debug",
			want:   false,
		},
		{
			name:   "debug level logs debug",
			cfg:    Config{Level: "debug", Format: "json"},
			logMsg: "test message",
			level:  "debug",
			want:   true,
		},
		{
			name:   "error level does not log warn",
			cfg:    Config{Level: "error", Format: "json"},
			logMsg: "test message",
			level:  "warn",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.cfg.Output = buf
			logger := NewLogger(tt.cfg)

			switch tt.level {
			case "debug":
				logger.Debug(tt.logMsg)
			case "info":
				logger.Info(tt.logMsg)
			case "warn":
				logger.Warn(tt.logMsg)
			case "error":
				logger.Error(tt.logMsg)
			}

			got := strings.Contains(buf.String(), tt.logMsg)
			if got != tt.want {
				t.Errorf("expected message presence=%v, got=%v, output=%s", tt.want, got, buf.String())
			}
		})
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := Config{Level: "info", Format: "json", Output: buf}
	logger := NewLogger(cfg)

	logger.Info("test message", "key", "value")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse JSON log: %v, output: %s", err, buf.String())
	}

	if logEntry["msg"] != "test message" {
		t.Errorf("expected msg='test message', got=%v", logEntry["msg"])
	}
	if logEntry["key"] != "value" {
		t.Errorf("expected key='value', got=%v", logEntry["key"])
	}
}

func TestLoggerTextFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := Config{Level: "info", Format: "text", Output: buf}
	logger := NewLogger(cfg)

	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected 'test message' in output, got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("expected 'key=value' in output, got: %s", output)
	}
}

func TestLoggerWith(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := Config{Level: "info", Format: "json", Output: buf}
	logger := NewLogger(cfg)

	childLogger := logger.With("static_key", "static_value")
	childLogger.Info("test message")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse JSON log: %v", err)
	}

	if logEntry["static_key"] != "static_value" {
		t.Errorf("expected static_key='static_value', got=%v", logEntry["static_key"])
	}
}

func TestLoggerWithComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := Config{Level: "info", Format: "json", Output: buf}
	logger := NewLogger(cfg)

	componentLogger := logger.WithComponent("to-store")
	componentLogger.Info("test message")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse JSON log: %v", err)
	}

	if logEntry["component"] != "to-store" {
		t.Errorf("expected component='to-store', got=%v", logEntry["component"])
	}
}

func TestNewLoggerFromSlog(t *testing.T) {
	buf := &bytes.Buffer{}
	slogger := slog.New(slog.NewJSONHandler(buf, nil))

	logger := NewLoggerFromSlog(slogger)
	logger.Info("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("expected 'test message' in output, got: %s", buf.String())
	}
}

func TestNewLoggerFromSlogNil(t *testing.T) {
	logger := NewLoggerFromSlog(nil)
	if logger == nil {
		t.Error("expected non-nil logger for nil slog input")
	}
}

func TestLoggerSlog(t *testing.T) {
	cfg := Config{Level: "info", Format: "json"}
	logger := NewLogger(cfg)

	if logger.Slog() == nil {
		t.Error("expected non-nil *slog.Logger from Slog()")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo}, // default
		{"", slog.LevelInfo},        // default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OIDCSYNC_LOG_LEVEL", "debug")
	t.Setenv("OIDCSYNC_LOG_FORMAT", "json")

	cfg := ConfigFromEnv()
	if cfg.Level != "debug" {
		t.Errorf("expected Level='debug', got=%s", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected Format='json', got=%s", cfg.Format)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected Level='info', got=%s", cfg.Level)
	}
	if cfg.Format != "text" {
		t.Errorf("expected Format='text', got=%s", cfg.Format)
	}
}
