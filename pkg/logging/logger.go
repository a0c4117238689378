// Package logging provides structured logging configuration and utilities.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	Level  string
	Pretty bool
}

// NewLogger builds a zerolog logger for the supplied configuration. Pretty
// output is intended for local development; production deployments log JSON.
func NewLogger(cfg Config) zerolog.Logger {
	var output io.Writer = os.Stdout

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}
