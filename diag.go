package dirfile

import (
	"io"

	"github.com/rs/zerolog"
)

// nopLogger is the zero-value Options.Logger: every call is a no-op,
// keeping logging opt-in rather than forced on every caller.
func nopLogger() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}

// componentLogger tags every entry from one subsystem's logger with a
// "component" field, so a cmd/dirinfo run walking many files can be filtered
// by which detector/loader stage produced a line.
func componentLogger(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}
