// Package logger provides leveled, structured logging backed by zap.
//
// Callers pass a message and a Fields map; the map is flattened into zap
// fields in key order so output is stable. A package-level default logger
// backs the convenience functions and can be replaced with SetDefault once
// configuration is loaded.
//
// Example usage:
//
//	logger.Info("Ingestion finished", logger.Fields{
//	    "pages":     3,
//	    "persisted": 41,
//	})
//
//	logger.Error("Persisting event failed", logger.Fields{
//	    "title": rec.Title,
//	}, err)
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Encodings supported by NewWithConfig
const (
	EncodingJSON    = "json"
	EncodingConsole = "console"
)

// Logger provides structured logging
type Logger struct {
	z *zap.Logger
}

// Fields represents structured log fields
type Fields map[string]interface{}

// Config selects level and output encoding
type Config struct {
	Level    string `yaml:"level" mapstructure:"level"`
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
}

var defaultLogger = New(LevelInfo, os.Stdout)

// New creates a JSON logger with the given minimum level writing to output.
// Messages below the minimum level are discarded.
func New(level Level, output io.Writer) *Logger {
	return newWithEncoder(zapcore.NewJSONEncoder(encoderConfig()), level, output)
}

// NewWithConfig builds a logger writing to output from configuration values
func NewWithConfig(cfg Config, output io.Writer) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Encoding) {
	case "", EncodingJSON:
		return New(level, output), nil
	case EncodingConsole:
		encCfg := encoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return newWithEncoder(zapcore.NewConsoleEncoder(encCfg), level, output), nil
	default:
		return nil, fmt.Errorf("unknown log encoding: %s", cfg.Encoding)
	}
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// ParseLevel converts a case-insensitive level name. Empty means INFO.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case "", LevelInfo:
		return LevelInfo, nil
	case LevelDebug:
		return LevelDebug, nil
	case LevelWarn, "WARNING":
		return LevelWarn, nil
	case LevelError:
		return LevelError, nil
	}
	return "", fmt.Errorf("unknown log level: %s", s)
}

// SetDefault sets the default package-level logger used by the convenience
// functions (Debug, Info, Warn, Error).
func SetDefault(logger *Logger) {
	defaultLogger = logger
}

// Default returns the package-level logger
func Default() *Logger {
	return defaultLogger
}

func newWithEncoder(enc zapcore.Encoder, level Level, output io.Writer) *Logger {
	core := zapcore.NewCore(enc, zapcore.AddSync(output), zapLevel(level))
	return &Logger{z: zap.New(core)}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		NameKey:        "component",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

func zapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// toZapFields flattens fields in key order
func toZapFields(fields Fields, err error) []zap.Field {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys)+1)
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	if err != nil {
		out = append(out, zap.Error(err))
	}
	return out
}

// With returns a child logger that adds fields to every entry
func (l *Logger) With(fields Fields) *Logger {
	return &Logger{z: l.z.With(toZapFields(fields, nil)...)}
}

// Named returns a child logger tagged with a component name
func (l *Logger) Named(component string) *Logger {
	return &Logger{z: l.z.Named(component)}
}

// Zap exposes the underlying zap logger for libraries that take one
func (l *Logger) Zap() *zap.Logger {
	return l.z
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.z.Sync()
}

// Debug logs a debug message with optional structured fields.
func (l *Logger) Debug(message string, fields Fields) {
	l.z.Debug(message, toZapFields(fields, nil)...)
}

// Info logs an informational message with optional structured fields.
func (l *Logger) Info(message string, fields Fields) {
	l.z.Info(message, toZapFields(fields, nil)...)
}

// Warn logs a warning message with optional structured fields.
// Warning messages indicate potential issues that don't prevent operation.
func (l *Logger) Warn(message string, fields Fields) {
	l.z.Warn(message, toZapFields(fields, nil)...)
}

// Error logs an error message with optional structured fields and an error object.
func (l *Logger) Error(message string, fields Fields, err error) {
	l.z.Error(message, toZapFields(fields, err)...)
}

// Package-level convenience functions using default logger

// Debug logs a debug message with the default logger
func Debug(message string, fields Fields) {
	defaultLogger.Debug(message, fields)
}

// Info logs an info message with the default logger
func Info(message string, fields Fields) {
	defaultLogger.Info(message, fields)
}

// Warn logs a warning message with the default logger
func Warn(message string, fields Fields) {
	defaultLogger.Warn(message, fields)
}

// Error logs an error message with the default logger
func Error(message string, fields Fields, err error) {
	defaultLogger.Error(message, fields, err)
}
