package logger

import (
	"context"
	"fmt"
	"strings"

	"github.com/muhammadchandra19/booksync/pkg/errors"
	"github.com/muhammadchandra19/booksync/pkg/util"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Interface is the structured logger used across the service. The *Context variants add
// the request, product and resync ids carried by ctx.
//
//go:generate mockgen -source log.go -destination=mock/log_mock.go -package=logger_mock
type Interface interface {
	Debug(message string, fields ...Field)
	DebugContext(ctx context.Context, message string, fields ...Field)
	Info(message string, fields ...Field)
	InfoContext(ctx context.Context, message string, fields ...Field)
	Warn(message string, fields ...Field)
	WarnContext(ctx context.Context, message string, fields ...Field)
	Error(err error, fields ...Field)
	ErrorContext(ctx context.Context, err error, fields ...Field)
	Sync() error
}

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// NewField returns a Field.
func NewField(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Level is the minimum severity a Logger writes.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

func (level Level) zapLevel() zapcore.Level {
	l, err := zapcore.ParseLevel(strings.ToLower(string(level)))
	if err != nil || l > zapcore.ErrorLevel {
		return zapcore.InfoLevel
	}
	return l
}

// Option customises the zap production config NewLogger starts from.
type Option func(cfg *zap.Config)

// WithLoggingLevel sets the minimum level. Unknown levels fall back to info.
func WithLoggingLevel(level Level) Option {
	return func(cfg *zap.Config) {
		cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())
	}
}

// WithOutputPaths sets where entries are written; "stdout" and "stderr" are understood.
func WithOutputPaths(paths []string) Option {
	return func(cfg *zap.Config) {
		cfg.OutputPaths = paths
	}
}

// Logger writes JSON entries through zap.
type Logger struct {
	logger *zap.Logger
}

// NewLogger builds a JSON Logger at info level, with "message" as the message key.
func NewLogger(opts ...Option) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.MessageKey = "message"
	for _, opt := range opts {
		opt(&cfg)
	}

	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{logger: z}, nil
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{logger: zap.NewNop()}
}

// GetZap exposes the underlying zap logger.
func (l *Logger) GetZap() *zap.Logger {
	return l.logger
}

// WithFields returns a child logger that adds fields to every entry.
func (l *Logger) WithFields(fields ...Field) *Logger {
	return &Logger{logger: l.logger.With(zapFields(fields)...)}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.logger.Sync()
}

func (l *Logger) Debug(message string, fields ...Field) {
	l.write(zapcore.DebugLevel, message, "", fields)
}

func (l *Logger) DebugContext(ctx context.Context, message string, fields ...Field) {
	l.Debug(message, withContext(ctx, fields)...)
}

func (l *Logger) Info(message string, fields ...Field) {
	l.write(zapcore.InfoLevel, message, "", fields)
}

func (l *Logger) InfoContext(ctx context.Context, message string, fields ...Field) {
	l.Info(message, withContext(ctx, fields)...)
}

func (l *Logger) Warn(message string, fields ...Field) {
	l.write(zapcore.WarnLevel, message, "", fields)
}

func (l *Logger) WarnContext(ctx context.Context, message string, fields ...Field) {
	l.Warn(message, withContext(ctx, fields)...)
}

// Error logs err as the message. When err carries a stack trace from pkg/errors it
// replaces the one zap would capture at the call site.
func (l *Logger) Error(err error, fields ...Field) {
	var stack string
	if st, ok := err.(errors.StackTracer); ok && st.StackTrace() != nil {
		stack = strings.TrimSpace(fmt.Sprintf("%+v", st.StackTrace()))
	}
	l.write(zapcore.ErrorLevel, err.Error(), stack, fields)
}

func (l *Logger) ErrorContext(ctx context.Context, err error, fields ...Field) {
	l.Error(err, withContext(ctx, fields)...)
}

func (l *Logger) write(level zapcore.Level, message, stack string, fields []Field) {
	ce := l.logger.Check(level, message)
	if ce == nil {
		return
	}
	if stack != "" {
		ce.Stack = stack
	}
	ce.Write(zapFields(fields)...)
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

// withContext appends the ids found in ctx. request_id is always present, empty or not.
func withContext(ctx context.Context, fields []Field) []Field {
	fields = append(fields, NewField("request_id", util.GetRequestID(ctx)))
	if id := util.GetProductID(ctx); id != "" {
		fields = append(fields, NewField("product_id", id))
	}
	if id := util.GetResyncID(ctx); id != "" {
		fields = append(fields, NewField("resync_id", id))
	}
	return fields
}
