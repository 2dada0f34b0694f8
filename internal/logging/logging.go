// Package logging wraps zap for the Boa client. Log output goes to stderr by
// default so that command output on stdout stays clean.
package logging

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

var (
	logger = zap.NewNop()
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	// wrapped reports the caller of the package-level helpers.
	wrapped = logger
)

func set(l *zap.Logger) {
	logger = l
	wrapped = l.WithOptions(zap.AddCallerSkip(1))
}

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // console or json
	OutputPath string // stderr (default), stdout or a file path
}

// Init builds the process logger.
func Init(cfg Config) error {
	SetLevel(cfg.Level)

	out := cfg.OutputPath
	if out == "" {
		out = "stderr"
	}
	sink, _, err := zap.Open(out)
	if err != nil {
		return fmt.Errorf("open log output %s: %w", out, err)
	}

	var enc zapcore.Encoder
	switch cfg.Format {
	case "json":
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	case "", "console":
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(ec)
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	set(zap.New(zapcore.NewCore(enc, sink, level), zap.AddCaller()))
	return nil
}

// Replace swaps the process logger and returns a function restoring the
// previous one.
func Replace(l *zap.Logger) func() {
	prev := logger
	set(l)
	return func() { set(prev) }
}

// Sync flushes buffered entries.
func Sync() error {
	return logger.Sync()
}

// SetLevel changes the level at runtime. Unknown names are ignored.
func SetLevel(name string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err == nil {
		level.SetLevel(l)
	}
}

// L returns the process logger.
func L() *zap.Logger {
	return logger
}

// With returns a context carrying a logger with extra fields, e.g. the
// command being run.
func With(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, ctxKey{}, FromContext(ctx).With(fields...))
}

// FromContext returns the logger stored by With, or the process logger.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return logger
}

func Debug(msg string, fields ...zap.Field) { wrapped.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field) { wrapped.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field) { wrapped.Warn(msg, fields...) }

func String(key, val string) zap.Field { return zap.String(key, val) }
func Int(key string, val int) zap.Field { return zap.Int(key, val) }
func Int64(key string, val int64) zap.Field { return zap.Int64(key, val) }
func Duration(key string, val time.Duration) zap.Field { return zap.Duration(key, val) }
func Err(err error) zap.Field { return zap.Error(err) }

// JobID is the field every job-scoped line carries.
func JobID(id int) zap.Field {
	return zap.Int("job_id", id)
}

// Method names the remote procedure.
func Method(name string) zap.Field {
	return zap.String("method", name)
}
