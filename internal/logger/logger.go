package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls how the driver's diagnostic logger is constructed. It is
// populated from internal/config and never required to use the driver -
// a nil *Config falls back to a JSON stdout logger at info level.
type Config struct {
	Level      string
	LogDir     string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	FileOutput bool
	Pretty     bool
}

const (
	DefaultLogOutputName = "ojp-client.log"

	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// New builds a slog.Logger plus a StyledLogger wrapper and a cleanup func
// that must be called on driver shutdown to flush/close file handlers.
func New(cfg *Config) (*slog.Logger, StyledLogger, func(), error) {
	if cfg == nil {
		cfg = &Config{Level: LevelInfo}
	}

	level := parseLevel(cfg.Level)

	var cleanupFuncs []func()
	handlers := make([]slog.Handler, 0, 2)

	pretty := cfg.Pretty && term.IsTerminal(int(os.Stdout.Fd()))
	handlers = append(handlers, slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: fastReplaceAttr,
	}))

	if cfg.FileOutput {
		fileHandler, cleanup, err := createFileHandler(cfg, level)
		if err != nil {
			return nil, nil, nil, err
		}
		cleanupFuncs = append(cleanupFuncs, cleanup)
		handlers = append(handlers, fileHandler)
	}

	var base *slog.Logger
	if len(handlers) == 1 {
		base = slog.New(handlers[0])
	} else {
		base = slog.New(&fanoutHandler{handlers: handlers})
	}

	cleanup := func() {
		for _, fn := range cleanupFuncs {
			fn()
		}
	}

	var styled StyledLogger
	if pretty {
		styled = NewPrettyStyledLogger(base)
	} else {
		styled = NewPlainStyledLogger(base)
	}

	return base, styled, cleanup, nil
}

func createFileHandler(cfg *Config, level slog.Level) (slog.Handler, func(), error) {
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, DefaultLogOutputName),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}

	handler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: fastReplaceAttr,
	})

	return handler, func() { _ = rotator.Close() }, nil
}

// fastReplaceAttr normalises timestamps and strips any ANSI escape codes
// that might leak into a message built by the pretty logger.
func fastReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{
			Key:   "timestamp",
			Value: slog.StringValue(a.Value.Time().Format("2006-01-02T15:04:05.000Z07:00")),
		}
	}
	if a.Value.Kind() == slog.KindString {
		if s := a.Value.String(); strings.ContainsRune(s, '\x1b') {
			return slog.Attr{Key: a.Key, Value: slog.StringValue(stripAnsiCodes(s))}
		}
	}
	return a
}

// fanoutHandler duplicates records across multiple slog handlers, e.g. a
// coloured stdout handler and a rotating JSON file handler.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn, "warning":
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
