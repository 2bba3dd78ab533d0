// Package logger wraps zerolog with the request and caller fields every
// service log line carries.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Level = zerolog.Level

const InfoLevel = zerolog.InfoLevel

type Config struct {
	Level      Level
	TimeFormat string
	Output     io.Writer
	// Console switches to the human readable writer.
	Console bool
}

type Logger struct {
	zl zerolog.Logger
}

func NewLogger(cfg *Config) *Logger {
	if cfg == nil {
		cfg = &Config{Level: InfoLevel, TimeFormat: time.RFC3339, Console: true}
	}
	var out io.Writer = os.Stdout
	if cfg.Output != nil {
		out = cfg.Output
	}
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: cfg.TimeFormat}
	}

	return &Logger{zl: zerolog.New(out).Level(cfg.Level).With().Timestamp().Caller().Logger()}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// ParseLevel falls back to info on unknown input.
func ParseLevel(s string) Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return InfoLevel
	}
	return lvl
}

// Zerolog exposes the underlying logger, e.g. for log.Logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

type fieldsKey struct{}

type requestFields struct {
	requestID string
	accountID string
	role      string
}

func fieldsFrom(ctx context.Context) requestFields {
	f, _ := ctx.Value(fieldsKey{}).(requestFields)
	return f
}

// WithRequestID returns a context whose loggers carry request_id.
func WithRequestID(ctx context.Context, id string) context.Context {
	f := fieldsFrom(ctx)
	f.requestID = id
	return context.WithValue(ctx, fieldsKey{}, f)
}

// WithAccount returns a context whose loggers carry the authenticated caller.
func WithAccount(ctx context.Context, accountID, role string) context.Context {
	f := fieldsFrom(ctx)
	f.accountID, f.role = accountID, role
	return context.WithValue(ctx, fieldsKey{}, f)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	return fieldsFrom(ctx).requestID
}

// WithContext adds whatever request and caller fields ctx carries.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	f := fieldsFrom(ctx)
	if f == (requestFields{}) {
		return l
	}
	c := l.zl.With()
	if f.requestID != "" {
		c = c.Str("request_id", f.requestID)
	}
	if f.accountID != "" {
		c = c.Str("account_id", f.accountID).Str("role", f.role)
	}
	return &Logger{zl: c.Logger()}
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.zl.Debug().Fields(fields).Msg(msg)
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	l.zl.Info().Fields(fields).Msg(msg)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.zl.Warn().Fields(fields).Msg(msg)
}

func (l *Logger) Error(err error, msg string, fields ...interface{}) {
	l.zl.Error().Err(err).Fields(fields).Msg(msg)
}

func (l *Logger) Fatal(err error, msg string, fields ...interface{}) {
	l.zl.Fatal().Err(err).Fields(fields).Msg(msg)
}
