// Package logging is the daemon's leveled, component-tagged logger. Output
// goes to the console, a rotating file, or both.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dougsko/nrfd/pkg/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents logging levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l LogLevel) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLogLevel maps a config level name to a LogLevel; unknown names are
// info.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes one line per entry to every sink.
type Logger struct {
	level      LogLevel
	structured bool

	mu    sync.Mutex
	sinks []io.Writer
	file  *lumberjack.Logger
}

// NewLogger builds a logger from the logging section of cfg. Console output
// is on when configured or when there is no log file.
func NewLogger(cfg *config.Config) (*Logger, error) {
	l := &Logger{
		level:      ParseLogLevel(cfg.Logging.Level),
		structured: cfg.Logging.Structured,
	}

	if path := cfg.Logging.File; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		l.file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.Logging.MaxSize, // megabytes
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAge, // days
			Compress:   cfg.Logging.Compress,
		}
		l.sinks = append(l.sinks, l.file)
	}

	if cfg.Logging.Console || l.file == nil {
		l.sinks = append(l.sinks, os.Stdout)
	}

	return l, nil
}

// New creates a human-readable logger writing to w
func New(w io.Writer, level LogLevel) *Logger {
	return &Logger{level: level, sinks: []io.Writer{w}}
}

// Close closes the log file, if any
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

type entry struct {
	Time      string                 `json:"time"`
	Level     string                 `json:"level"`
	Component string                 `json:"component"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (l *Logger) format(e entry) string {
	if l.structured {
		b, err := json.Marshal(e)
		if err == nil {
			return string(b)
		}
		e.Fields = map[string]interface{}{"marshal_error": err.Error()}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] %s: %s", e.Time, e.Level, e.Component, e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%s=%v", k, e.Fields[k])
		}
		sb.WriteByte(']')
	}
	return sb.String()
}

func (l *Logger) log(level LogLevel, component, message string, fields []map[string]interface{}) {
	if level < l.level {
		return
	}

	e := entry{
		Time:      time.Now().Format("2006-01-02 15:04:05.000"),
		Level:     level.String(),
		Component: component,
		Message:   message,
	}
	if len(fields) > 0 {
		e.Fields = fields[0]
	}
	line := l.format(e) + "\n"

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.sinks {
		io.WriteString(w, line)
	}
}

// Debug, Info, Warn and Error take an optional map of fields.

func (l *Logger) Debug(component, message string, fields ...map[string]interface{}) {
	l.log(LevelDebug, component, message, fields)
}

func (l *Logger) Info(component, message string, fields ...map[string]interface{}) {
	l.log(LevelInfo, component, message, fields)
}

func (l *Logger) Warn(component, message string, fields ...map[string]interface{}) {
	l.log(LevelWarn, component, message, fields)
}

func (l *Logger) Error(component, message string, fields ...map[string]interface{}) {
	l.log(LevelError, component, message, fields)
}

func (l *Logger) Debugf(component, format string, args ...interface{}) {
	l.log(LevelDebug, component, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Infof(component, format string, args ...interface{}) {
	l.log(LevelInfo, component, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Warnf(component, format string, args ...interface{}) {
	l.log(LevelWarn, component, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Errorf(component, format string, args ...interface{}) {
	l.log(LevelError, component, fmt.Sprintf(format, args...), nil)
}

var (
	globalMu     sync.RWMutex
	globalLogger = New(os.Stdout, LevelInfo)
)

// SetGlobalLogger replaces the global logger; nil restores the console default
func SetGlobalLogger(l *Logger) {
	if l == nil {
		l = New(os.Stdout, LevelInfo)
	}
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// InitGlobalLogger installs a logger built from cfg
func InitGlobalLogger(cfg *config.Config) error {
	l, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	SetGlobalLogger(l)
	return nil
}

// GetGlobalLogger returns the global logger
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// CloseGlobalLogger closes the global logger's file
func CloseGlobalLogger() error {
	return GetGlobalLogger().Close()
}

func Info(component, message string, fields ...map[string]interface{}) {
	GetGlobalLogger().log(LevelInfo, component, message, fields)
}

func Error(component, message string, fields ...map[string]interface{}) {
	GetGlobalLogger().log(LevelError, component, message, fields)
}

func Debugf(component, format string, args ...interface{}) {
	GetGlobalLogger().Debugf(component, format, args...)
}

func Infof(component, format string, args ...interface{}) {
	GetGlobalLogger().Infof(component, format, args...)
}

func Warnf(component, format string, args ...interface{}) {
	GetGlobalLogger().Warnf(component, format, args...)
}

func Errorf(component, format string, args ...interface{}) {
	GetGlobalLogger().Errorf(component, format, args...)
}
