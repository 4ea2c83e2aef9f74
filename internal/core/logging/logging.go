// internal/core/logging/logging.go
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"go.opentelemetry.io/otel/trace"
)

/*
 * Structured logging setup.
 *
 * All packages log through log/slog. This package builds the process-wide
 * handler from the log.level and log.format settings:
 *   - json:   slog JSON handler, for log shippers
 *   - logfmt: slog text handler
 *   - text:   charmbracelet/log, colored when the terminal supports it
 *
 * WithContext returns the logger for a request: a logger stored with
 * NewContext, else the default logger tagged with the active trace id.
 */

// Format is a log output format.
type Format string

// Level is a log level name.
type Level string

type contextKey string

const (
	FormatJSON   Format = "json"
	FormatLogfmt Format = "logfmt"
	FormatText   Format = "text"

	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"

	loggerContextKey contextKey = "logger"
)

var (
	ErrUnknownLogLevel  = errors.New("unknown log level")
	ErrUnknownLogFormat = errors.New("unknown log format")

	AllFormats = []string{string(FormatJSON), string(FormatLogfmt), string(FormatText)}
	AllLevels  = []string{string(LevelError), string(LevelWarn), string(LevelInfo), string(LevelDebug)}
)

// New creates a logger writing to w from level and format names.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := GetLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	logFmt, err := GetFormat(format)
	if err != nil {
		return nil, fmt.Errorf("log format %q: %w", format, err)
	}
	return slog.New(CreateHandler(w, lvl, logFmt)), nil
}

// CreateHandler creates the slog.Handler of a format.
func CreateHandler(w io.Writer, level slog.Level, format Format) slog.Handler {
	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case FormatLogfmt:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	default:
		return newCharmHandler(w, level)
	}
}

// GetLevel parses a level name. "warning" is accepted for warn.
func GetLevel(level string) (slog.Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(level))) {
	case LevelError:
		return slog.LevelError, nil
	case LevelWarn, "warning":
		return slog.LevelWarn, nil
	case LevelInfo, "":
		return slog.LevelInfo, nil
	case LevelDebug:
		return slog.LevelDebug, nil
	}
	return 0, ErrUnknownLogLevel
}

// GetFormat parses a format name.
func GetFormat(format string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(format)))
	if f == "" {
		return FormatText, nil
	}
	if slices.Contains([]Format{FormatJSON, FormatLogfmt, FormatText}, f) {
		return f, nil
	}
	return "", ErrUnknownLogFormat
}

func newCharmHandler(w io.Writer, level slog.Level) slog.Handler {
	logger := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           charmlog.Level(int32(level)),
		Formatter:       charmlog.TextFormatter,
		ReportTimestamp: true,
		TimeFormat:      time.StampMilli,
	})
	logger.SetColorProfile(termenv.ColorProfile())
	return logger
}

// NewContext returns a context carrying logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// WithContext returns the logger for ctx.
func WithContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return logger
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		traceID := span.SpanContext().TraceID().String()
		if len(traceID) > 8 {
			traceID = traceID[:8]
		}
		return slog.With(slog.String("trace_id", traceID))
	}

	return slog.Default()
}
