// Package logging configures the process-wide slog logger for the runway CLI.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/runway-sync/runway/internal/utils"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

type Options struct {
	Level   slog.Level
	Output  *os.File // defaults to stderr
	LogFile string   // optional, written without colour
}

// Setup installs the default logger and returns a closer for the log file.
func Setup(opts Options) (io.Closer, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlers := []slog.Handler{
		tint.NewHandler(out, &tint.Options{
			Level:      opts.Level,
			TimeFormat: timeFormat,
			NoColor:    !isatty.IsTerminal(out.Fd()),
		}),
	}

	var closer io.Closer = nopCloser{}
	if opts.LogFile != "" {
		if err := utils.EnsureParent(opts.LogFile); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		lw := newLineWriter(file)
		handlers = append(handlers, slog.NewTextHandler(lw, &slog.HandlerOptions{
			Level: opts.Level,
			// time is added by the line writer
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey && len(groups) == 0 {
					return slog.Attr{}
				}
				return a
			},
		}))
		closer = fileCloser{lw: lw, file: file}
	}

	slog.SetDefault(slog.New(newFanoutHandler(handlers...)))
	return closer, nil
}

// LevelFromFlags maps the CLI verbosity flags to a slog level.
func LevelFromFlags(verbose, quiet bool) slog.Level {
	switch {
	case verbose:
		return slog.LevelDebug
	case quiet:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type fileCloser struct {
	lw   *lineWriter
	file *os.File
}

func (c fileCloser) Close() error {
	if err := c.lw.Close(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}
