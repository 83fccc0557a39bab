// Package logging builds the slog handlers of a docflow node from its
// logging configuration.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/syntrixbase/docflow/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log file names inside the configured directory.
const (
	MainLogFile  = "docflow.log"
	ErrorLogFile = "errors.log"
)

// Output is a configured logger together with the files it writes to.
type Output struct {
	Logger *slog.Logger
	files  []*lumberjack.Logger
}

// Initialize builds the logger for cfg, writing console output to stdout,
// and installs it as the slog default.
func Initialize(cfg config.LoggingConfig) (*Output, error) {
	out, err := New(cfg, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(out.Logger)

	out.Logger.Info("Logging initialized",
		"level", cfg.Level,
		"format", cfg.Format,
		"dir", cfg.Dir,
		"console_enabled", cfg.Console.Enabled,
		"file_enabled", cfg.File.Enabled,
	)
	return out, nil
}

// New builds a logger for cfg. Console output goes to console; file output
// goes to a rotated main log with every enabled level and a rotated error
// log with warnings and errors only.
func New(cfg config.LoggingConfig, console io.Writer) (*Output, error) {
	out := &Output{}
	var handlers []slog.Handler

	if cfg.Console.Enabled && console != nil {
		handlers = append(handlers, newHandler(console, cfg.Console.Format, ParseLevel(cfg.Console.Level)))
	}

	if cfg.File.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		main := out.openFile(cfg, MainLogFile)
		handlers = append(handlers, newHandler(main, cfg.File.Format, ParseLevel(cfg.File.Level)))

		errs := out.openFile(cfg, ErrorLogFile)
		handlers = append(handlers, newHandler(errs, cfg.File.Format, max(slog.LevelWarn, ParseLevel(cfg.File.Level))))
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, nil)
	case 1:
		handler = handlers[0]
	default:
		handler = NewMultiHandler(handlers...)
	}
	out.Logger = slog.New(handler)
	return out, nil
}

// Close flushes and closes every log file.
func (o *Output) Close() error {
	var errs []error
	for _, f := range o.files {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", f.Filename, err))
		}
	}
	o.files = nil
	return errors.Join(errs...)
}

func (o *Output) openFile(cfg config.LoggingConfig, name string) *lumberjack.Logger {
	f := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, name),
		MaxSize:    cfg.Rotation.MaxSize,
		MaxBackups: cfg.Rotation.MaxBackups,
		MaxAge:     cfg.Rotation.MaxAge,
		Compress:   cfg.Rotation.Compress,
	}
	o.files = append(o.files, f)
	return f
}

// ParseLevel maps a configured level name to a slog level. Unknown names
// log at info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return NewTextHandler(w, opts)
}
