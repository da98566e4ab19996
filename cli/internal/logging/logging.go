// Package logging builds the zerolog logger for one invocation.
package logging

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options select verbosity. Debug wins over Verbose, which wins over Quiet.
type Options struct {
	Quiet   bool
	Verbose bool
	Debug   bool
	// NoColor disables ANSI colors in the console output.
	NoColor bool
}

// Level maps opts to a zerolog level. The default is warn, so only problems
// reach stderr unless asked for.
func Level(opts Options) zerolog.Level {
	switch {
	case opts.Debug:
		return zerolog.DebugLevel
	case opts.Verbose:
		return zerolog.InfoLevel
	case opts.Quiet:
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}

// New returns a console logger on w tagged with a fresh run id.
func New(w io.Writer, opts Options) (zerolog.Logger, string) {
	runID := uuid.NewString()
	out := zerolog.ConsoleWriter{Out: w, NoColor: opts.NoColor, TimeFormat: time.Kitchen}
	log := zerolog.New(out).
		Level(Level(opts)).
		With().
		Timestamp().
		Str("run", runID[:8]).
		Logger()
	return log, runID
}
