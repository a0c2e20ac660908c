// Structured logging, in the style of warren's pkg/log: a package-level
// zerolog logger, component-scoped sub-loggers, debug-level logs for stale
// index entries and failed type coercion, and a warning for a root
// collection caught with an INHERIT mode.
package xantippe

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// log is the package-wide logger. Replace with SetLogger for custom output.
var log = zerolog.New(os.Stderr).With().Timestamp().Str("pkg", "xantippe").Logger()

// SetLogger redirects package logging to w at the given level.
func SetLogger(w io.Writer, level zerolog.Level) {
	log = zerolog.New(w).Level(level).With().Timestamp().Str("pkg", "xantippe").Logger()
}

// component returns a sub-logger tagged with the given component name,
// mirroring warren's log.WithComponent helper.
func component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
