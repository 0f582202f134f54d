// Package logger builds the zerolog loggers used throughout the service.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the log level and output format.
type Config struct {
	Level  string // debug, info, warn, error; anything else means info
	Pretty bool   // human-readable console output for interactive runs
}

// New builds the root logger. The level is set on the logger itself rather
// than globally, so tests can run loggers at different levels side by side.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000"}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// SetGlobalLogger routes the package-level zerolog/log helpers through l so
// code without an injected logger still lands in the same stream.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
