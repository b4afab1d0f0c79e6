// Package log wraps slog with the handler, level and file rotation choices
// shared by the geospatial command and its storage backends.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how a Logger writes.
type Options struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string `yaml:"level" json:"level"`
	// File, when set, sends output to a rotating log file instead of
	// stderr.
	File string `yaml:"file" json:"file"`
	// Format forces "text" or "json". Empty selects text on a terminal and
	// JSON otherwise.
	Format string `yaml:"format" json:"format"`
}

type Logger struct {
	*slog.Logger
	LogFile string
	Start   time.Time
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%s: invalid log level", level)
	}
}

// New builds a Logger from opts. An invalid level is reported on stderr and
// falls back to info.
func New(opts Options) *Logger {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	var w io.Writer = os.Stderr
	terminal := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	if opts.File != "" {
		w = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    32, // MB
			MaxBackups: 3,
			MaxAge:     14,
		}
		terminal = false
	}

	l := NewWithWriter(w, lvl, opts.Format == "text" || (opts.Format == "" && terminal))
	l.LogFile = opts.File
	return l
}

// NewWithWriter builds a Logger writing to w at the given level.
func NewWithWriter(w io.Writer, lvl slog.Level, text bool) *Logger {
	hopts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if text {
		h = slog.NewTextHandler(w, hopts)
	} else {
		h = slog.NewJSONHandler(w, hopts)
	}
	return &Logger{Logger: slog.New(h), Start: time.Now()}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewWithWriter(io.Discard, slog.LevelError+1, false)
}

// The wrappers below accept a nil *Logger: debug and info output is dropped
// while warnings and errors go to the default slog logger.

func (l *Logger) Debug(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelDebug) {
		l.Logger.Debug(msg, args...)
	}
}

func (l *Logger) Debugf(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelDebug) {
		l.Logger.Debug(fmt.Sprintf(msg, args...))
	}
}

func (l *Logger) Info(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelInfo) {
		l.Logger.Info(msg, args...)
	}
}

func (l *Logger) Infof(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelInfo) {
		l.Logger.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *Logger) Warn(msg string, args ...any) {
	if l == nil {
		slog.Warn(msg, args...)
	} else {
		l.Logger.Warn(msg, args...)
	}
}

func (l *Logger) Warnf(msg string, args ...any) {
	l.Warn(fmt.Sprintf(msg, args...))
}

func (l *Logger) Error(msg string, args ...any) {
	if l == nil {
		slog.Error(msg, args...)
	} else {
		l.Logger.Error(msg, args...)
	}
}

func (l *Logger) Errorf(msg string, args ...any) {
	l.Error(fmt.Sprintf(msg, args...))
}

// Timed logs msg at info level with the time elapsed since start.
func (l *Logger) Timed(msg string, start time.Time, args ...any) {
	l.Info(msg, append([]any{slog.Duration("elapsed", time.Since(start))}, args...)...)
}
