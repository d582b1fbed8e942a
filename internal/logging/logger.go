package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       string
	Format      string
	Output      io.Writer
}

// Logger wraps zerolog with context-carried fields.
type Logger struct {
	base *zerolog.Logger
}

type ctxKey struct{}

func New(opts Options) *Logger {
	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	if strings.EqualFold(opts.Format, "console") {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.New(output).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger().
		Level(ParseLevel(opts.Level))

	return &Logger{base: &logger}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	logger := zerolog.Nop()
	return &Logger{base: &logger}
}

func ParseLevel(value string) zerolog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return zerolog.InfoLevel
	}
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		return lvl
	}
	return zerolog.InfoLevel
}

func (l *Logger) from(ctx context.Context) *zerolog.Logger {
	if l == nil {
		nop := zerolog.Nop()
		return &nop
	}
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
			return entry
		}
	}
	return l.base
}

// WithField returns a context whose log lines carry key=value.
func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	entry := l.from(ctx).With().Interface(key, value).Logger()
	return context.WithValue(ctx, ctxKey{}, &entry)
}

func (l *Logger) WithSessionID(ctx context.Context, sessionID string) context.Context {
	return l.WithField(ctx, "session_id", sessionID)
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.from(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.from(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string, err error) {
	event := l.from(ctx).Warn()
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(msg)
}

func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.from(ctx).Error()
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(msg)
}

// Zerolog exposes the underlying logger for adapters that need it directly.
func (l *Logger) Zerolog() *zerolog.Logger {
	return l.from(nil)
}

// Writer returns an io.Writer that logs each write at info level. Writes are
// dropped when the configured level is above info.
func (l *Logger) Writer() io.Writer {
	return levelWriter{logger: l.from(nil), level: zerolog.InfoLevel}
}

type levelWriter struct {
	logger *zerolog.Logger
	level  zerolog.Level
}

func (w levelWriter) Write(p []byte) (int, error) {
	w.logger.WithLevel(w.level).Msg(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
