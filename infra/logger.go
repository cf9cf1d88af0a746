package infra

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	otellog "go.opentelemetry.io/otel/log"
)

type LoggerClient struct {
	logger *slog.Logger
}

// InitLoggerClient bridges slog to the OpenTelemetry logger provider when
// one is exported, and falls back to text on stdout otherwise.
func InitLoggerClient(serviceName string, provider otellog.LoggerProvider) *LoggerClient {
	if provider == nil {
		return NewLoggerClient(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	}
	return NewLoggerClient(otelslog.NewLogger(serviceName, otelslog.WithLoggerProvider(provider)))
}

func NewLoggerClient(logger *slog.Logger) *LoggerClient {
	return &LoggerClient{logger: logger}
}

// NewDiscardLogger is used where log output is irrelevant, mostly tests.
func NewDiscardLogger() *LoggerClient {
	return NewLoggerClient(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (l *LoggerClient) DebugWithContextf(ctx context.Context, format string, args ...interface{}) {
	l.logger.DebugContext(ctx, fmt.Sprintf(format, args...))
}

func (l *LoggerClient) InfoWithContextf(ctx context.Context, format string, args ...interface{}) {
	l.logger.InfoContext(ctx, fmt.Sprintf(format, args...))
}

func (l *LoggerClient) WarningWithContextf(ctx context.Context, format string, args ...interface{}) {
	l.logger.WarnContext(ctx, fmt.Sprintf(format, args...))
}

func (l *LoggerClient) ErrorWithContextf(ctx context.Context, err error, format string, args ...interface{}) {
	if err == nil {
		l.logger.ErrorContext(ctx, fmt.Sprintf(format, args...))
		return
	}
	l.logger.ErrorContext(ctx, fmt.Sprintf(format, args...), slog.String("error", err.Error()))
}
