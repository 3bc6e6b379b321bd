// Package klog wires zerolog the way the rest of the ambient stack expects:
// a single console-or-JSON logger built once in main and threaded through
// as a value, never a package-level global the kernel reaches for directly.
package klog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options controls how New builds the root logger.
type Options struct {
	// Level is parsed with zerolog.ParseLevel; an empty string means Info.
	Level string
	// JSON selects structured JSON output instead of zerolog's console
	// writer. Production deployments want JSON; the demo CLI defaults to
	// the console writer for a human reading the terminal.
	JSON bool
	// Writer overrides the destination, mainly for tests. Defaults to
	// os.Stderr.
	Writer io.Writer
}

// New builds the root logger for the process. Call once in main and pass
// the result (or a .With().Str(...).Logger() derivative) into
// kernel.WithLogger and every other component that accepts a
// zerolog.Logger.
func New(opts Options) zerolog.Logger {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		if l, err := zerolog.ParseLevel(opts.Level); err == nil {
			level = l
		}
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if !opts.JSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
