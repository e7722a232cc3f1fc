package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"

	scigoErrors "github.com/YuminosukeSato/bratbench/pkg/errors"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// Output formats accepted by SetupLogger.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
	FormatZerolog = "zerolog"
)

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = newSlogProvider(os.Stderr, FormatConsole, LevelInfo)
)

// SetupLogger installs the package-level provider. format is one of
// FormatJSON (slog JSON with stack traces), FormatConsole (tint) or
// FormatZerolog. Warnings raised through pkg/errors are routed to the new
// backend.
func SetupLogger(w io.Writer, loglevel, format string) error {
	level, err := ToLogLevel(loglevel)
	if err != nil {
		return err
	}

	var p LoggerProvider
	switch format {
	case FormatJSON, FormatConsole, "":
		if format == "" {
			format = FormatConsole
		}
		p = newSlogProvider(w, format, level)
	case FormatZerolog:
		p = NewZerologProvider(w, level)
	default:
		return scigoErrors.NewValidationError("log_format", "must be json, console or zerolog", format)
	}

	SetProvider(p)
	return nil
}

// SetProvider replaces the package-level provider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	provider = p
	providerMu.Unlock()

	warnLogger := p.GetLoggerWithName("warnings")
	scigoErrors.SetZerologWarnFunc(func(w error) {
		warnLogger.Warn(w.Error(), "warning_type", warningType(w))
	})
}

// GetLogger returns the default logger of the current provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with the component name.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// ToLogLevel parses a level name.
func ToLogLevel(level string) (Level, error) {
	switch level {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, scigoErrors.NewValidationError("log_level", "must be debug, info, warn or error", level)
	}
}

// ErrAttr wraps err for slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// slogProvider builds loggers over a slog handler chain.
type slogProvider struct {
	levelVar *slog.LevelVar
	handler  slog.Handler
}

func newSlogProvider(w io.Writer, format string, level Level) *slogProvider {
	levelVar := &slog.LevelVar{}
	levelVar.Set(slog.Level(level))

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource: true,
			Level:     levelVar,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				switch attr.Key {
				case slog.LevelKey:
					attr.Key = "severity"
				case slog.MessageKey:
					attr.Key = "message"
				}
				return attr
			},
		})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      levelVar,
			TimeFormat: time.TimeOnly,
		})
	}

	return &slogProvider{
		levelVar: levelVar,
		handler:  WrapByErrFmtHandler(handler),
	}
}

func (p *slogProvider) GetLogger() Logger {
	return &slogLogger{logger: slog.New(p.handler)}
}

func (p *slogProvider) GetLoggerWithName(name string) Logger {
	return &slogLogger{logger: slog.New(p.handler).With(ComponentKey, name)}
}

func (p *slogProvider) SetLevel(level Level) {
	p.levelVar.Set(slog.Level(level))
}

// slogLogger adapts *slog.Logger to Logger.
type slogLogger struct {
	logger *slog.Logger
}

func (l *slogLogger) Debug(msg string, fields ...any) { l.logger.Debug(msg, fields...) }
func (l *slogLogger) Info(msg string, fields ...any)  { l.logger.Info(msg, fields...) }
func (l *slogLogger) Warn(msg string, fields ...any)  { l.logger.Warn(msg, fields...) }

func (l *slogLogger) Error(msg string, fields ...any) {
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			fields = append([]any{ErrAttr(err)}, fields[1:]...)
		}
	}
	l.logger.Error(msg, fields...)
}

func (l *slogLogger) With(fields ...any) Logger {
	return &slogLogger{logger: l.logger.With(fields...)}
}

func (l *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return l.logger.Enabled(ctx, slog.Level(level))
}

func warningType(w error) string {
	var conv *scigoErrors.ConvergenceWarning
	if scigoErrors.As(w, &conv) {
		return "ConvergenceWarning"
	}
	var data *scigoErrors.DataConversionWarning
	if scigoErrors.As(w, &data) {
		return "DataConversionWarning"
	}
	return "Warning"
}
