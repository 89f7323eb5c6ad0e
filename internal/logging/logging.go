// Package logging provides the audio core's structured logging, built on
// log/slog with lumberjack-based rotation for file sinks.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	structuredLogger *slog.Logger
	loggerMu         sync.RWMutex
	currentLogLevel  = new(slog.LevelVar)
	initOnce         sync.Once
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

// defaultReplaceAttr formats timestamps to RFC3339, gives the extra
// trace/fatal levels readable names, and truncates float attrs to 2
// decimal places so volume-factor/drift-error logs stay compact.
func defaultReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.StringValue(a.Value.Time().Format("2006-01-02T15:04:05Z07:00"))
	}
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok {
			label, exists := levelNames[level]
			if !exists {
				label = level.String()
			}
			a.Value = slog.StringValue(label)
		}
	}
	if a.Value.Kind() == slog.KindFloat64 {
		truncated := math.Trunc(a.Value.Float64()*100) / 100.0
		a.Value = slog.Float64Value(truncated)
	}
	return a
}

// Init sets up the global structured logger writing JSON to stderr. Call
// once per process; the simulator binary calls this before constructing
// any pipeline.
func Init() {
	initOnce.Do(func() {
		currentLogLevel.Set(slog.LevelInfo)
		handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level:       currentLogLevel,
			ReplaceAttr: defaultReplaceAttr,
		})
		loggerMu.Lock()
		structuredLogger = slog.New(handler)
		loggerMu.Unlock()
		slog.SetDefault(structuredLogger)
	})
}

// SetLevel changes the logging level for every logger sharing the
// package's LevelVar.
func SetLevel(level slog.Level) {
	currentLogLevel.Set(level)
}

// ForService returns a logger tagged with service=serviceName, falling
// back to slog.Default() if Init has not run yet (keeps tests simple).
func ForService(serviceName string) *slog.Logger {
	loggerMu.RLock()
	logger := structuredLogger
	loggerMu.RUnlock()
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("service", serviceName)
}

func Debug(msg string, args ...any) { slog.Debug(msg, args...) }
func Info(msg string, args ...any)  { slog.Info(msg, args...) }
func Warn(msg string, args ...any)  { slog.Warn(msg, args...) }
func Error(msg string, args ...any) { slog.Error(msg, args...) }

// Fatal logs at the custom fatal level then exits the process. Only the
// cmd/audiocore-sim entry point should call this; library code always
// returns errors instead.
func Fatal(msg string, args ...any) {
	slog.Log(context.TODO(), LevelFatal, msg, args...)
	os.Exit(1)
}

func Trace(msg string, args ...any) {
	slog.Log(context.TODO(), LevelTrace, msg, args...)
}

// RotationPolicy configures a lumberjack-backed file sink.
type RotationPolicy struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultRotationPolicy matches the size-based defaults the teacher's
// config applies when no explicit rotation is requested.
func DefaultRotationPolicy() RotationPolicy {
	return RotationPolicy{MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28}
}

// NewFileLogger builds a service-tagged JSON logger writing to filePath
// through lumberjack rotation, returning a close function for the
// caller's shutdown path.
func NewFileLogger(filePath, serviceName string, policy RotationPolicy, levelVar *slog.LevelVar) (*slog.Logger, func() error, error) {
	dir := filepath.Dir(filePath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory %s: %w", dir, err)
		}
	}

	lj := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    policy.MaxSizeMB,
		MaxBackups: policy.MaxBackups,
		MaxAge:     policy.MaxAgeDays,
		Compress:   policy.Compress,
	}

	level := levelVar
	if level == nil {
		level = currentLogLevel
	}

	handler := slog.NewJSONHandler(lj, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: defaultReplaceAttr,
	})

	logger := slog.New(handler).With("service", serviceName)
	return logger, lj.Close, nil
}
