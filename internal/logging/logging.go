// Package logging provides process-level structured logging on top of
// go.uber.org/zap, grounded on the teacher pack's internal/logger
// (oshokin-zvuk-grabber): a package-global *zap.Logger plus level, guarded
// by a mutex, with context-aware Debug/Info/Warn/Error/Fatal helpers. This
// sits below internal/events: events.Emitter is the public UI contract for
// per-track outcomes, logging is the operator-facing stderr trace for
// startup, config, and fatal InvariantViolation errors.
package logging

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.RWMutex
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	current = New(level)
)

// New builds a *zap.Logger at the given level. A nil level falls back to
// Info. Output is a human-readable console encoder to stderr, matching the
// teacher pack's development-friendly default.
func New(lvl zapcore.LevelEnabler) *zap.Logger {
	if lvl == nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = "ts"
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(zapcore.AddSync(zapErrSink())),
		lvl,
	)
	return zap.New(core)
}

// zapErrSink opens stderr through zap.Open; New always logs there. Tests
// that need another sink replace the whole logger with SetLogger.
func zapErrSink() zapcore.WriteSyncer {
	ws, _, _ := zap.Open("stderr")
	return ws
}

// ParseLogLevel maps a case-insensitive, whitespace-trimmed level name to
// its zapcore.Level. ok is false for an unrecognized name, in which case
// the returned level defaults to Info.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	case "dpanic":
		return zapcore.DPanicLevel, true
	case "panic":
		return zapcore.PanicLevel, true
	case "fatal":
		return zapcore.FatalLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

// Logger returns the current package-global logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetLogger replaces the package-global logger, e.g. to point at a file
// sink in --json mode or to inject a test observer.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

// Level returns the package-global atomic level.
func Level() zapcore.Level {
	mu.RLock()
	defer mu.RUnlock()
	return level.Level()
}

// SetLevel adjusts the package-global logger's minimum level in place.
func SetLevel(lvl zapcore.Level) {
	mu.Lock()
	defer mu.Unlock()
	level.SetLevel(lvl)
}

func fields(ctx context.Context) []zap.Field {
	if opID, ok := ctx.Value(opIDKey{}).(string); ok && opID != "" {
		return []zap.Field{zap.String("op_id", opID)}
	}
	return nil
}

type opIDKey struct{}

// WithOpID attaches an operation id (e.g. track id, scan run id) to ctx so
// subsequent logging calls tag their lines with it.
func WithOpID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, opIDKey{}, id)
}

func Debug(ctx context.Context, msg string)  { Logger().Debug(msg, fields(ctx)...) }
func Info(ctx context.Context, msg string)   { Logger().Info(msg, fields(ctx)...) }
func Warn(ctx context.Context, msg string)   { Logger().Warn(msg, fields(ctx)...) }
func Error(ctx context.Context, msg string)  { Logger().Error(msg, fields(ctx)...) }
func Fatal(ctx context.Context, msg string)  { Logger().Fatal(msg, fields(ctx)...) }

func Debugf(ctx context.Context, format string, args ...any) {
	Logger().Sugar().Debugf(withOpPrefix(ctx, format), args...)
}
func Infof(ctx context.Context, format string, args ...any) {
	Logger().Sugar().Infof(withOpPrefix(ctx, format), args...)
}
func Warnf(ctx context.Context, format string, args ...any) {
	Logger().Sugar().Warnf(withOpPrefix(ctx, format), args...)
}
func Errorf(ctx context.Context, format string, args ...any) {
	Logger().Sugar().Errorf(withOpPrefix(ctx, format), args...)
}

func withOpPrefix(ctx context.Context, format string) string {
	if opID, ok := ctx.Value(opIDKey{}).(string); ok && opID != "" {
		return "[" + opID + "] " + format
	}
	return format
}

func DebugKV(ctx context.Context, msg string, kv ...any) {
	Logger().Sugar().Debugw(msg, append(kvToArgs(ctx), kv...)...)
}
func InfoKV(ctx context.Context, msg string, kv ...any) {
	Logger().Sugar().Infow(msg, append(kvToArgs(ctx), kv...)...)
}
func WarnKV(ctx context.Context, msg string, kv ...any) {
	Logger().Sugar().Warnw(msg, append(kvToArgs(ctx), kv...)...)
}
func ErrorKV(ctx context.Context, msg string, kv ...any) {
	Logger().Sugar().Errorw(msg, append(kvToArgs(ctx), kv...)...)
}

func kvToArgs(ctx context.Context) []any {
	if opID, ok := ctx.Value(opIDKey{}).(string); ok && opID != "" {
		return []any{"op_id", opID}
	}
	return nil
}
