package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type contextKey struct{}

// NewContext returns ctx carrying l.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the request logger, or one backed by slog.Default.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return l
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

// WithRequestID stores a logger enriched with the request ID in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return NewContext(ctx, FromContext(ctx).With(FieldRequestID, requestID))
}

// LogRequest records a finished request. 4xx logs at warn, 5xx at error.
func (l *Logger) LogRequest(ctx context.Context, r *http.Request, statusCode int, elapsed time.Duration, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithHTTPResponse(statusCode, elapsed.Milliseconds(), statusCode < 400).
		WithClientIP(clientIP)

	l.Logger.Log(ctx, level, "HTTP request completed", l.args(fields.ToSlice())...)
}

// LogFailure records a failed operation. Internal errors log at error level,
// rejected input at warn.
func (l *Logger) LogFailure(ctx context.Context, msg string, err error, operation, errorType string) {
	fields := NewFields().WithError(err).WithOperation(operation)
	fields[FieldErrorType] = errorType

	level := slog.LevelWarn
	if errorType == ErrorTypeInternal {
		level = slog.LevelError
	}
	l.Logger.Log(ctx, level, msg, l.args(fields.ToSlice())...)
}
