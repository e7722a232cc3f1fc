// Package log provides the structured logging interface used across bratbench.
//
// The interface is slog-compatible so that the backend can be swapped between
// the JSON slog handler, a colourised console handler and zerolog without
// touching estimator code. Attribute keys in attributes.go keep field names
// consistent between models, the tuner and the experiment runner.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("brat").With(
//	    log.ModelNameKey, "BRATD",
//	)
//	logger.Info("Training started",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 5000,
//	    log.FeaturesKey, 7,
//	)
package log

import (
	"context"
)

// Logger is the structured logging interface. Fields are alternating
// key/value pairs as in log/slog.
type Logger interface {
	// Debug logs detailed diagnostic information such as per-stage losses.
	Debug(msg string, fields ...any)

	// Info logs general progress.
	Info(msg string, fields ...any)

	// Warn logs conditions that do not stop the run, for example a skipped
	// model family.
	Warn(msg string, fields ...any)

	// Error logs a failure. When the first field is an error value it is
	// attached under the "error" key together with its stack trace.
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every record.
	With(fields ...any) Logger

	// Enabled reports whether records at level are emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level is a logging level with slog-compatible values.
type Level int

// Standard logging levels.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates loggers. The package-level provider is replaced by
// SetupLogger or SetProvider; tests install a TestLoggerProvider.
type LoggerProvider interface {
	// GetLogger returns the default logger.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum level for loggers created by this provider.
	SetLevel(level Level)
}
