// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string // RFC3339, Unix, etc.
}

// DefaultConfig returns sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		TimeFormat: time.RFC3339,
	}
}

// New builds a logger writing to out. Components receive it (or a child of
// it) through their constructors rather than reading a global.
func New(cfg Config, out io.Writer) zerolog.Logger {
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
		}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "virtual-secretary").
		Logger()
}

// Init builds the process logger on stdout and installs it as the zerolog
// global for third-party code that logs through it.
func Init(cfg Config) zerolog.Logger {
	logger := New(cfg, os.Stdout)
	log.Logger = logger
	return logger
}

// WithComponent returns a logger with a component tag.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().
		Str("component", component).
		Logger()
}

// WithSession returns a logger with session context.
func WithSession(logger zerolog.Logger, sessionId string) zerolog.Logger {
	return logger.With().
		Str("sessionId", sessionId).
		Logger()
}

// WithTurn returns a logger with turn context.
func WithTurn(logger zerolog.Logger, sessionId, turnId string) zerolog.Logger {
	return logger.With().
		Str("sessionId", sessionId).
		Str("turnId", turnId).
		Logger()
}
