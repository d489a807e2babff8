// Package logging builds the zerolog logger shared by the CLI, the store and
// the HTTP server.
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger writing to w at the named level
// (trace, debug, info, warn, error, fatal, panic, disabled).
func New(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level %q: %w", level, err)
	}

	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
		NoColor:    true,
	}

	return zerolog.New(console).Level(lvl).With().Timestamp().Logger(), nil
}

// Verbosity raises level by the number of -v flags: one step per flag,
// never below trace.
func Verbosity(level string, verbose int) string {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	for range verbose {
		if lvl <= zerolog.TraceLevel {
			break
		}

		lvl--
	}

	return lvl.String()
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
