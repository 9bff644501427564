package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dougsko/nrfd/pkg/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLogLevel(tt.input); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelWarn)

	logger.Debug("test", "debug message")
	logger.Info("test", "info message")
	logger.Warn("test", "warn message")
	logger.Errorf("test", "error %d", 42)

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("Messages below WARN should be dropped: %q", out)
	}
	if !strings.Contains(out, "[WARN] test: warn message") {
		t.Errorf("Expected warn line, got %q", out)
	}
	if !strings.Contains(out, "[ERROR] test: error 42") {
		t.Errorf("Expected error line, got %q", out)
	}
}

func TestFields(t *testing.T) {
	t.Run("Human Readable", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, LevelInfo)
		logger.Info("engine", "started", map[string]interface{}{"b": 2, "a": 1})

		if !strings.Contains(buf.String(), "engine: started [a=1 b=2]") {
			t.Errorf("Expected sorted fields, got %q", buf.String())
		}
	})

	t.Run("Structured", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.SetDefaults()
		cfg.Logging.File = filepath.Join(t.TempDir(), "nrfd.log")
		cfg.Logging.Console = false
		cfg.Logging.Structured = true

		logger, err := NewLogger(cfg)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		logger.Info("engine", "started", map[string]interface{}{"firmware": "nrf"})
		logger.Close()

		data, err := os.ReadFile(cfg.Logging.File)
		if err != nil {
			t.Fatalf("Failed to read log file: %v", err)
		}
		out := string(data)
		if !strings.Contains(out, `"level":"INFO","component":"engine","message":"started"`) {
			t.Errorf("Unexpected structured output %q", out)
		}
		if !strings.Contains(out, `"firmware":"nrf"`) {
			t.Errorf("Expected field in output %q", out)
		}
	})
}

func TestFileLogging(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Logging.File = filepath.Join(t.TempDir(), "logs", "nrfd.log")
	cfg.Logging.Level = "debug"

	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.Debugf("storage", "stored observation %d", 7)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(cfg.Logging.File)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "[DEBUG] storage: stored observation 7") {
		t.Errorf("Unexpected log file contents %q", data)
	}
}

func TestGlobalLogger(t *testing.T) {
	defer SetGlobalLogger(nil)

	var buf bytes.Buffer
	SetGlobalLogger(New(&buf, LevelDebug))

	Debugf("main", "value=%s", "x")
	Info("main", "hello")

	if !strings.Contains(buf.String(), "main: value=x") || !strings.Contains(buf.String(), "main: hello") {
		t.Errorf("Global helpers should use the installed logger, got %q", buf.String())
	}

	SetGlobalLogger(nil)
	if GetGlobalLogger() == nil {
		t.Error("Expected default global logger after reset")
	}
}
