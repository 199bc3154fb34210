// Package logger builds the structured zerolog logger every
// ForecastBench job binary uses in place of fmt.Println or the
// stdlib log package.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls logger construction.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // human-readable console output for local runs
}

// New builds a zerolog.Logger with timestamp and caller fields
// attached, matching the ambient logging discipline every job binary
// follows.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// SetGlobal installs l as the package-level zerolog logger so code
// that reaches for log.Logger picks it up.
func SetGlobal(l zerolog.Logger) {
	log.Logger = l
}

// Job returns a child logger tagged with run_id and stage.
func Job(base zerolog.Logger, runID, stage string) zerolog.Logger {
	return base.With().Str("run_id", runID).Str("stage", stage).Logger()
}
