package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"
)

var (
	globalLogger = slog.Default()
	files        []*os.File
	mu           sync.Mutex
)

type Config struct {
	Level   string   `json:"level" yaml:"level"`     // none/debug/info/warn/error
	Format  string   `json:"format" yaml:"format"`   // text/json
	Outputs []string `json:"outputs" yaml:"outputs"` // stdout/stderr/file path
}

var ErrUnknownLevel = errors.New("unknown log level")

func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
}

// NewHandler returns a handler writing to w at the configured level and
// format. Level "none" discards everything.
func NewHandler(cfg Config, w io.Writer) (slog.Handler, error) {
	if cfg.Level == "none" {
		return slog.NewTextHandler(io.Discard, nil), nil
	}
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	switch cfg.Format {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	}
	return nil, fmt.Errorf("unknown log format %q", cfg.Format)
}

// Init builds the global logger from cfg and makes it the slog default.
// Files opened for a previous configuration are closed.
func Init(cfg Config) error {
	var (
		writers []io.Writer
		opened  []*os.File
	)
	if cfg.Level != "none" {
		for _, output := range cfg.Outputs {
			switch output {
			case "", "stdout":
				writers = append(writers, os.Stdout)
			case "stderr":
				writers = append(writers, os.Stderr)
			default:
				if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
					return multierr.Append(fmt.Errorf("failed to create log directory: %w", err), closeFiles(opened))
				}
				file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
				if err != nil {
					return multierr.Append(fmt.Errorf("failed to open log file: %w", err), closeFiles(opened))
				}
				opened = append(opened, file)
				writers = append(writers, file)
			}
		}
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	handler, err := NewHandler(cfg, io.MultiWriter(writers...))
	if err != nil {
		return multierr.Append(err, closeFiles(opened))
	}

	mu.Lock()
	previous := files
	files = opened
	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
	mu.Unlock()

	return closeFiles(previous)
}

// Close closes every log file opened by Init. Logging keeps working on the
// remaining outputs.
func Close() error {
	mu.Lock()
	opened := files
	files = nil
	mu.Unlock()
	return closeFiles(opened)
}

func closeFiles(fs []*os.File) error {
	var err error
	for _, f := range fs {
		err = multierr.Append(err, f.Close())
	}
	return err
}

func Debug(msg string, args ...interface{}) {
	Logger().Debug(msg, args...)
}

func Info(msg string, args ...interface{}) {
	Logger().Info(msg, args...)
}

func Warn(msg string, args ...interface{}) {
	Logger().Warn(msg, args...)
}

func Error(msg string, args ...interface{}) {
	Logger().Error(msg, args...)
}

func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return globalLogger
}
