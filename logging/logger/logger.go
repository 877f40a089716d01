// Package logger provides the structured logger used across authcore.
//
// The logger is logrus-backed, carries the request trace ID from context,
// and masks credential material (passwords, tokens, codes) before any
// field reaches an output.
package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nebulium/authcore/logging/logger/config"
	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus logger with context awareness and desensitization.
type Logger struct {
	base         *logrus.Logger
	desensitizer *Desensitizer
}

var std = &Logger{base: logrus.New(), desensitizer: NewDesensitizer(nil)}

// New configures the standard logger from config and returns a cleanup
// function that flushes and closes any file output.
func New(cfg *config.Config) (func(), error) {
	cleanup := func() {}
	if cfg == nil {
		return cleanup, nil
	}

	base := logrus.New()
	base.SetLevel(toLogrusLevel(cfg.Level))

	switch cfg.Format {
	case "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		base.SetFormatter(&logrus.JSONFormatter{})
	}

	switch cfg.Output {
	case "file":
		if cfg.OutputFile == "" {
			return nil, fmt.Errorf("logger output is file but output_file is empty")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.OutputFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		base.SetOutput(f)
		cleanup = func() { _ = f.Close() }
	case "stderr":
		base.SetOutput(os.Stderr)
	default:
		base.SetOutput(os.Stdout)
	}

	std = &Logger{
		base:         base,
		desensitizer: NewDesensitizer(cfg.Desensitization),
	}
	return cleanup, nil
}

// StdLogger returns the standard logger.
func StdLogger() *Logger {
	return std
}

// toLogrusLevel maps the numeric config level onto logrus levels
// (0=panic .. 6=trace). Out-of-range values read as info.
func toLogrusLevel(level int) logrus.Level {
	if level < int(logrus.PanicLevel) || level > int(logrus.TraceLevel) {
		return logrus.InfoLevel
	}
	return logrus.Level(level)
}

// entry builds a logrus entry carrying the trace ID and desensitized fields.
func (l *Logger) entry(ctx context.Context, kv ...any) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kv[i])
		}
		fields[key] = kv[i+1]
	}
	if traceID := getTraceID(ctx); traceID != "" {
		fields["trace_id"] = traceID
	}
	return l.base.WithFields(l.desensitizer.DesensitizeFields(fields))
}

// Debug logs a debug message with key/value fields.
func (l *Logger) Debug(ctx context.Context, msg string, kv ...any) {
	l.entry(ctx, kv...).Debug(msg)
}

// Info logs an info message with key/value fields.
func (l *Logger) Info(ctx context.Context, msg string, kv ...any) {
	l.entry(ctx, kv...).Info(msg)
}

// Warn logs a warning message with key/value fields.
func (l *Logger) Warn(ctx context.Context, msg string, kv ...any) {
	l.entry(ctx, kv...).Warn(msg)
}

// Error logs an error message with key/value fields.
func (l *Logger) Error(ctx context.Context, msg string, kv ...any) {
	l.entry(ctx, kv...).Error(msg)
}

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(ctx context.Context, format string, args ...any) {
	l.entry(ctx).Debugf(format, args...)
}

// Infof logs a formatted info message.
func (l *Logger) Infof(ctx context.Context, format string, args ...any) {
	l.entry(ctx).Infof(format, args...)
}

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(ctx context.Context, format string, args ...any) {
	l.entry(ctx).Warnf(format, args...)
}

// Errorf logs a formatted error message.
func (l *Logger) Errorf(ctx context.Context, format string, args ...any) {
	l.entry(ctx).Errorf(format, args...)
}

// Package-level helpers logging through the standard logger.

func Debug(ctx context.Context, msg string, kv ...any) {
	std.Debug(ctx, msg, kv...)
}

func Info(ctx context.Context, msg string, kv ...any) {
	std.Info(ctx, msg, kv...)
}

func Warn(ctx context.Context, msg string, kv ...any) {
	std.Warn(ctx, msg, kv...)
}

func Error(ctx context.Context, msg string, kv ...any) {
	std.Error(ctx, msg, kv...)
}

func Debugf(ctx context.Context, format string, args ...any) {
	std.Debugf(ctx, format, args...)
}

func Infof(ctx context.Context, format string, args ...any) {
	std.Infof(ctx, format, args...)
}

func Warnf(ctx context.Context, format string, args ...any) {
	std.Warnf(ctx, format, args...)
}

func Errorf(ctx context.Context, format string, args ...any) {
	std.Errorf(ctx, format, args...)
}
