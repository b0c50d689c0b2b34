package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
)

// Attribute keys used across the service
const (
	TraceIDKey = "trace_id"
	SpanIDKey  = "span_id"
	ModuleKey  = "module"
)

// programLevel allows dynamic adjustment of the logging level
var programLevel = new(slog.LevelVar)

// Logger wraps slog.Logger with module and tracing helpers
type Logger struct {
	*slog.Logger
}

// filterAttr drops credential material from log output. The authcheck path
// handles raw passwords and proxy tokens, none of which may ever be logged.
func filterAttr(groups []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case "password", "secret", "token", "auth_tkt", "cookie":
		return slog.Attr{}
	}
	return a
}

// NewLogger creates a new logger with the specified level
func NewLogger(level string) (*Logger, error) {
	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:       programLevel,
		TimeFormat:  time.RFC3339,
		ReplaceAttr: filterAttr,
	})

	if err := SetLogLevel(level); err != nil {
		return nil, err
	}

	logger := &Logger{Logger: slog.New(handler)}
	slog.SetDefault(logger.Logger)
	return logger, nil
}

// SetLogLevel sets the logging level
func SetLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug":
		programLevel.Set(slog.LevelDebug)
	case "info":
		programLevel.Set(slog.LevelInfo)
	case "warn":
		programLevel.Set(slog.LevelWarn)
	case "error":
		programLevel.Set(slog.LevelError)
	default:
		return fmt.Errorf("invalid log level: '%s'", level)
	}
	return nil
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return programLevel.Level() <= slog.LevelDebug
}

// With creates a new logger with the provided attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithModule creates a new logger with the module attribute
func (l *Logger) WithModule(module string) *Logger {
	return l.With(ModuleKey, module)
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.NewString()
}

// NewSpanID generates a new span ID
func NewSpanID() string {
	return uuid.NewString()
}

type contextKey string

const (
	ctxLoggerKey  contextKey = "logger"
	ctxTraceIDKey contextKey = "traceID"
	ctxSpanIDKey  contextKey = "spanID"
)

// ContextWithLogger adds a logger to a context
func ContextWithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey, logger)
}

// LoggerFromContext extracts a logger from a context
func LoggerFromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxLoggerKey).(*Logger); ok {
		return logger
	}
	return nil
}

// ContextWithTraceID adds a trace ID to a context
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxTraceIDKey, traceID)
}

// TraceIDFromContext retrieves the trace ID from a context
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(ctxTraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// ContextWithSpanID adds a span ID to a context
func ContextWithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, ctxSpanIDKey, spanID)
}

// SpanIDFromContext retrieves the span ID from a context
func SpanIDFromContext(ctx context.Context) string {
	if spanID, ok := ctx.Value(ctxSpanIDKey).(string); ok {
		return spanID
	}
	return ""
}

// Err returns a formatted error attribute for logging
func Err(err error) slog.Attr {
	return tint.Err(err)
}
