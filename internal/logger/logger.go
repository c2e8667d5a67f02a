// Package logger builds the process-wide slog logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Ротация файла журнала
const (
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 28
)

// Options configures New
type Options struct {
	Level  string // debug, info, warn, error
	Format string // auto, text, json
	File   string // если задан, журнал пишется в файл с ротацией
}

// New creates a logger writing to out, or to a rotating file when opts.File is set.
// The returned closer must be closed on shutdown; it is a no-op without a file.
func New(opts Options, out io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		}
		out = rotating
		closer = rotating
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if useText(opts.Format, out) {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	return slog.New(handler), closer, nil
}

// ParseLevel converts a level name into slog.Level; empty means info
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", name)
	}
}

// useText выбирает текстовый формат для терминала, JSON для файлов и пайпов
func useText(format string, out io.Writer) bool {
	switch strings.ToLower(format) {
	case "text":
		return true
	case "json":
		return false
	}

	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
