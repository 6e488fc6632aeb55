package logging

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels passed to logr's V().
const (
	INFO  = 0
	DEBUG = 1
	TRACE = 2
)

// Log is the process-wide logger. It discards everything until SetLogger is called.
var Log = logr.Discard()

// SetLogger replaces the process-wide logger.
func SetLogger(l logr.Logger) {
	Log = l
}

// ParseLevel converts "info", "debug", "trace" or a verbosity number to a level.
func ParseLevel(level string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return INFO, nil
	case "debug":
		return DEBUG, nil
	case "trace":
		return TRACE, nil
	}
	v, err := strconv.Atoi(level)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("unknown log level %q", level)
	}
	return v, nil
}

// NewLogger builds a zap-backed logger. Development mode switches to a console
// encoder with caller information.
func NewLogger(level string, development bool) (logr.Logger, error) {
	v, err := ParseLevel(level)
	if err != nil {
		return logr.Discard(), err
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	// zap levels are negated logr verbosities
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-v))
	cfg.DisableStacktrace = !development

	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), fmt.Errorf("building zap logger: %w", err)
	}
	return zapr.NewLogger(zl), nil
}

// NewTestLogger installs a development logger at DEBUG verbosity writing to stderr and
// returns it.
func NewTestLogger() logr.Logger {
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(zapcore.Level(-DEBUG)))
	l := zapr.NewLogger(zap.New(core))
	SetLogger(l)
	return l
}

// FromContext returns the logger stored in ctx, falling back to Log.
func FromContext(ctx context.Context) logr.Logger {
	if l, err := logr.FromContext(ctx); err == nil {
		return l
	}
	return Log
}

// IntoContext stores a logger in ctx.
func IntoContext(ctx context.Context, l logr.Logger) context.Context {
	return logr.NewContext(ctx, l)
}
