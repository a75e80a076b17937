package logger

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the log encoder.
type Format string

const (
	// FormatConsole is the human-readable, colored format used on terminals.
	FormatConsole Format = "console"
	// FormatJSON writes one JSON object per line for journald and log shippers.
	FormatJSON Format = "json"
)

var (
	// global is the shared logger instance used throughout the application.
	//nolint:gochecknoglobals // Logger is used all over the project, so it's okay.
	global *zap.SugaredLogger
	// level is shared by every logger built without an explicit level, so
	// SetLevel applies to all of them.
	//nolint:gochecknoglobals // If the logging level is not set, the application will have no logs.
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
)

func init() { //nolint:gochecknoinits // If the logging level is not set, the application will have no logs.
	SetLogger(New(level))
}

// ParseFormat converts configuration input into a Format. Empty means console.
func ParseFormat(s string) (Format, error) {
	switch format := Format(strings.ToLower(strings.TrimSpace(s))); format {
	case "":
		return FormatConsole, nil
	case FormatConsole, FormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("unknown log format %q", s)
	}
}

// New creates a console logger writing to stdout.
func New(enabler zapcore.LevelEnabler, options ...zap.Option) *zap.SugaredLogger {
	return NewWithOutput(zapcore.AddSync(os.Stdout), enabler, options...)
}

// NewWithOutput creates a console logger writing to output. A nil enabler
// follows the shared level.
func NewWithOutput(output zapcore.WriteSyncer, enabler zapcore.LevelEnabler, options ...zap.Option) *zap.SugaredLogger {
	return NewFormat(FormatConsole, output, enabler, options...)
}

// NewFormat creates a logger with the given encoder.
func NewFormat(
	format Format,
	output zapcore.WriteSyncer,
	enabler zapcore.LevelEnabler,
	options ...zap.Option,
) *zap.SugaredLogger {
	if enabler == nil {
		enabler = level
	}

	var encoder zapcore.Encoder

	switch format {
	case FormatJSON:
		cfg := encoderConfig()
		cfg.TimeKey = "time"
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	default:
		cfg := encoderConfig()
		cfg.ConsoleSeparator = ", "
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	return zap.New(zapcore.NewCore(encoder, output, enabler), options...).Sugar()
}

//nolint:exhaustruct // I'm okay with default encoder configuration values.
func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

// ParseLogLevel converts configuration input to a zap level. Unknown input
// yields InfoLevel and false.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	parsed, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel, false
	}

	return parsed, true
}

// Level returns the shared logging level.
func Level() zapcore.Level {
	return level.Level()
}

// AtomicLevel exposes the shared level so loggers built elsewhere follow SetLevel.
func AtomicLevel() zap.AtomicLevel {
	return level
}

// Logger returns the global logger.
func Logger() *zap.SugaredLogger {
	return global
}

// SetLogger sets the global logger.
// This function is not thread-safe.
func SetLogger(l *zap.SugaredLogger) {
	global = l
}

// SetLevel changes the shared level. Safe to call from the config watcher goroutine.
func SetLevel(l zapcore.Level) {
	//nolint: errcheck // No need to check the error here.
	defer global.Sync()

	level.SetLevel(l)
}

// DebugKV writes a message and key-value pairs
// at the debug level using the logger from the context.
func DebugKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Debugw(message, kvs...)
}

// Info writes an information level message using the logger from the context.
func Info(ctx context.Context, args ...any) {
	FromContext(ctx).Info(args...)
}

// InfoKV writes a message and key-value pairs
// at the information level using the logger from the context.
func InfoKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Infow(message, kvs...)
}

// Warn writes a warning level message using the logger from the context.
func Warn(ctx context.Context, args ...any) {
	FromContext(ctx).Warn(args...)
}

// WarnKV writes a message and key-value pairs
// at the warning level using the logger from the context.
func WarnKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Warnw(message, kvs...)
}

// ErrorKV writes a message and key-value pairs
// at the error level using the logger from the context.
func ErrorKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Errorw(message, kvs...)
}
