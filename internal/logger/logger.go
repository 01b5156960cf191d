// Package logger provides the Cape server's structured logging: a
// package-level slog-backed logger with configurable level, format
// (text/json), and output, plus typed field helpers and request-scoped
// context fields (client address, username, session id).
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config holds logger configuration.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or a file path
}

var (
	mu       sync.RWMutex
	levelVar = new(slog.LevelVar)
	output   io.Writer = os.Stdout
	format             = "text"
	slogger  *slog.Logger
)

func init() {
	levelVar.Set(slog.LevelInfo)
	reconfigure()
}

// parseLevel maps a config string to a slog level, defaulting to Info.
func parseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// reconfigure rebuilds the handler from the current output and format.
// Must be called with mu held for writing (or from init).
func reconfigure() {
	opts := &slog.HandlerOptions{Level: levelVar}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = slog.NewTextHandler(output, opts)
	}
	slogger = slog.New(h)
}

// Init configures the package-level logger from cfg. An Output of
// "stdout" or "stderr" selects the corresponding stream; anything else
// is opened (and created if needed) as an append-only log file.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
		}
		output = f
	}

	levelVar.Set(parseLevel(cfg.Level))
	if cfg.Format == "json" {
		format = "json"
	} else {
		format = "text"
	}
	reconfigure()
	return nil
}

// InitWithWriter points the logger at an arbitrary writer. Used by tests
// to capture output.
func InitWithWriter(w io.Writer, level, logFormat string) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	levelVar.Set(parseLevel(level))
	format = logFormat
	reconfigure()
}

// SetLevel changes the minimum level without rebuilding the handler.
func SetLevel(level string) {
	levelVar.Set(parseLevel(level))
}

func getLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// With returns a child logger carrying the given fields on every record.
func With(args ...any) *slog.Logger {
	return getLogger().With(args...)
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	getLogger().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	getLogger().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	getLogger().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	getLogger().Error(msg, args...)
}

// DebugCtx logs at debug level with the request fields carried in ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	getLogger().Debug(msg, appendContextFields(ctx, args)...)
}

// InfoCtx logs at info level with the request fields carried in ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	getLogger().Info(msg, appendContextFields(ctx, args)...)
}

// WarnCtx logs at warn level with the request fields carried in ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	getLogger().Warn(msg, appendContextFields(ctx, args)...)
}

// ErrorCtx logs at error level with the request fields carried in ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	getLogger().Error(msg, appendContextFields(ctx, args)...)
}
