package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger builds the process logger, tagged with the application and
// the router whose graph it serves, and installs it as the zerolog
// global so package-level log calls share the same output. Every metric
// family in this package carries the same router label, so log lines
// and series correlate directly.
func InitLogger(app, router string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	ctx := zerolog.New(output).With().Timestamp().Str("app", app)
	if router != "" {
		ctx = ctx.Str("router", router)
	}
	logger := ctx.Logger()
	log.Logger = logger
	return logger
}
