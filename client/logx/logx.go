/*
Package logx builds the zerolog loggers used by the client.

The interactive UI owns the terminal, so callers choose where logs go:
stderr with the console writer for one-shot commands, a file or nowhere
for the TUI.
*/
package logx

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to w at the given level. An unknown level
// falls back to info. When console is set the output is human readable.
func New(w io.Writer, level string, console bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if console {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.TimeOnly,
		}
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Open resolves the log destination. An empty path means stderr unless
// quiet is set, in which case logs are discarded. The returned closer
// must be called on shutdown.
func Open(path string, quiet bool) (io.Writer, func() error, error) {
	noop := func() error { return nil }
	if path == "" {
		if quiet {
			return io.Discard, noop, nil
		}
		return os.Stderr, noop, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// Component derives a sub-logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
