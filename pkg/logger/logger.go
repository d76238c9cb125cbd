package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

// RequestIDKey is the context key under which the request id travels.
const RequestIDKey contextKey = "request_id"

// Setup configures the global zerolog logger shared by the HTTP stack and
// every Component logger. An unknown level falls back to info.
func Setup(level string, pretty bool) {
	zerolog.SetGlobalLevel(parseLevel(level))
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Logger is the key/value logger handed to background workers, which log
// outside any request.
type Logger struct {
	zl zerolog.Logger
}

// Component derives a logger from the global one, tagged with the
// component's name.
func Component(name string) *Logger {
	return &Logger{zl: log.Logger.With().Str("component", name).Logger()}
}

// New writes JSON lines at level or above to w.
func New(w io.Writer, level string) *Logger {
	return &Logger{zl: zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{zl: l.zl.With().Fields(kv).Logger()}
}

// WithContext adds the request id carried by ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	id, _ := ctx.Value(RequestIDKey).(string)
	if id == "" {
		return l
	}
	return l.With("request_id", id)
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.zl.Debug().Fields(kv).Msg(msg) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.zl.Info().Fields(kv).Msg(msg) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.zl.Warn().Fields(kv).Msg(msg) }

func (l *Logger) Error(err error, msg string, kv ...interface{}) {
	l.zl.Error().Err(err).Fields(kv).Msg(msg)
}
