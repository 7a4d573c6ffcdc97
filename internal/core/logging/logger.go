// Package logging derives per-component child loggers from the global
// zerolog logger. Every pipeline stage (socket, store, manager, state)
// logs through one of these so log lines are attributable.
package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component returns a child logger tagged with the component name
// under the "cmp" key.
func Component(name string) zerolog.Logger {
	return log.With().Str("cmp", name).Logger()
}
