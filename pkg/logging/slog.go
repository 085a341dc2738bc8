// Package logging provides the server's structured logging stack: an
// slog.Logger configured from SPEC_FULL.md §10's Config, with rotating
// file output and request-scoped correlation fields (session id, user id,
// game id) pulled from context.Context.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config represents slog-compatible logging configuration, loaded as part
// of playferrous.toml's [logging] table.
type Config struct {
	Level  string   `toml:"level"`  // debug, info, warn, error
	Format string   `toml:"format"` // json, text
	Output string   `toml:"output"` // stdout, stderr, file
	File   *LogFile `toml:"file,omitempty"`
}

// LogFile configures rotating file output via lumberjack.
type LogFile struct {
	Directory string `toml:"directory"`
	Filename  string `toml:"filename"`
	MaxSize   string `toml:"max_size"`
	MaxFiles  int    `toml:"max_files"`
	MaxAge    string `toml:"max_age"`
	Compress  bool   `toml:"compress"`
}

// ctxKey is a private context key type so correlation fields set by one
// package can't collide with keys set elsewhere.
type ctxKey string

const (
	ctxUserID    ctxKey = "user_id"
	ctxSessionID ctxKey = "session_id"
	ctxGameID    ctxKey = "game_id"
	ctxRequestID ctxKey = "request_id"
)

func WithUserID(ctx context.Context, v string) context.Context {
	return context.WithValue(ctx, ctxUserID, v)
}

func WithSessionID(ctx context.Context, v string) context.Context {
	return context.WithValue(ctx, ctxSessionID, v)
}

func WithGameID(ctx context.Context, v string) context.Context {
	return context.WithValue(ctx, ctxGameID, v)
}

func WithRequestID(ctx context.Context, v string) context.Context {
	return context.WithValue(ctx, ctxRequestID, v)
}

// NewLogger creates a configured slog.Logger with a service name attached.
func NewLogger(serviceName string, config Config) *slog.Logger {
	level := parseLogLevel(config.Level)

	opts := &slog.HandlerOptions{Level: level}
	writer := createWriter(config)

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	logger := slog.New(handler)
	return logger.With("service", serviceName)
}

// NewServiceLogger creates a logger with a component field attached, for a
// single actor kind (e.g. "proposal-actor", "connection-registry").
func NewServiceLogger(serviceName, componentName string, config Config) *slog.Logger {
	return NewLogger(serviceName, config).With("component", componentName)
}

// ContextLogger extracts correlation fields set via WithUserID /
// WithSessionID / WithGameID / WithRequestID and attaches them to logger,
// so every log line emitted while handling a request carries them without
// threading a logger through every call.
func ContextLogger(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if v := ctx.Value(ctxUserID); v != nil {
		logger = logger.With("user_id", v)
	}
	if v := ctx.Value(ctxSessionID); v != nil {
		logger = logger.With("session_id", v)
	}
	if v := ctx.Value(ctxGameID); v != nil {
		logger = logger.With("game_id", v)
	}
	if v := ctx.Value(ctxRequestID); v != nil {
		logger = logger.With("request_id", v)
	}
	return logger
}

var logLevels = map[string]slog.Level{
	"DEBUG":   slog.LevelDebug,
	"INFO":    slog.LevelInfo,
	"WARN":    slog.LevelWarn,
	"WARNING": slog.LevelWarn,
	"ERROR":   slog.LevelError,
}

func parseLogLevel(level string) slog.Level {
	if lvl, ok := logLevels[strings.ToUpper(level)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

func createWriter(config Config) io.Writer {
	switch strings.ToLower(config.Output) {
	case "stdout", "":
		return os.Stdout
	case "stderr":
		return os.Stderr
	case "file":
		if config.File == nil {
			fmt.Fprintln(os.Stderr, "logging: file output requested but no file config given, falling back to stdout")
			return os.Stdout
		}
		writer, err := createFileWriter(config.File)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging: failed to create file writer (%v), falling back to stdout\n", err)
			return os.Stdout
		}
		return writer
	default:
		fmt.Fprintf(os.Stderr, "logging: unknown output %q, falling back to stdout\n", config.Output)
		return os.Stdout
	}
}

func createFileWriter(config *LogFile) (io.Writer, error) {
	if err := os.MkdirAll(config.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	maxSize, err := parseSize(config.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("invalid max_size: %w", err)
	}
	maxAge, err := parseAge(config.MaxAge)
	if err != nil {
		return nil, fmt.Errorf("invalid max_age: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   filepath.Join(config.Directory, config.Filename),
		MaxSize:    maxSize,
		MaxBackups: config.MaxFiles,
		MaxAge:     maxAge,
		Compress:   config.Compress,
	}, nil
}

// unitSuffix is one recognized suffix for parseScaledInt, checked longest
// first so "days" matches before "d".
type unitSuffix struct {
	suffix string
	factor int
}

var sizeSuffixes = []unitSuffix{{"GB", 1024}, {"MB", 1}}
var ageSuffixes = []unitSuffix{{"DAYS", 1}, {"D", 1}}

// parseScaledInt parses a leading integer followed by one of units (case
// insensitive), returning value*factor. An input with no matching suffix is
// parsed as a bare integer with factor 1. Both [LogFile.MaxSize] ("500MB",
// "2GB") and [LogFile.MaxAge] ("30d", "90days") share this shape, so both
// route through the same parser instead of duplicating the suffix-strip and
// Sscanf dance per unit.
func parseScaledInt(raw string, units []unitSuffix, defaultValue int) (int, error) {
	if raw == "" {
		return defaultValue, nil
	}
	s := strings.ToUpper(strings.TrimSpace(raw))
	for _, u := range units {
		if trimmed, ok := strings.CutSuffix(s, u.suffix); ok {
			var n int
			if _, err := fmt.Sscanf(trimmed, "%d", &n); err != nil {
				return 0, err
			}
			return n * u.factor, nil
		}
	}
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func parseSize(sizeStr string) (int, error) {
	return parseScaledInt(sizeStr, sizeSuffixes, 100)
}

func parseAge(ageStr string) (int, error) {
	return parseScaledInt(ageStr, ageSuffixes, 28)
}

// GetEnvOrDefault returns the named environment variable, or defaultValue
// if it is unset or empty.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
