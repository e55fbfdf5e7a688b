// Package logging wires the module's zerolog conventions: JSON by
// default, a console writer for local development, and a
// panic-recovery helper every long-running goroutine defers.
package logging

import (
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// Options selects the logger's level and output format.
type Options struct {
	Level  string // debug|info|warn|error
	Format string // json|text|pretty
	Service string
}

// New builds a root logger per Options. Every component should derive a
// sub-logger from it via .With().Str("component", name).Logger() rather
// than constructing its own.
func New(opts Options) zerolog.Logger {
	var output io.Writer = os.Stdout

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if opts.Format == "pretty" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	service := opts.Service
	if service == "" {
		service = "netcore"
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

// RecoverPanic logs and swallows a panic recovered in a goroutine defer,
// keeping the process alive instead of crashing the tick loop or a single
// peer's pump goroutines.
func RecoverPanic(logger zerolog.Logger, goroutine string, fields map[string]any) {
	if r := recover(); r != nil {
		event := logger.Error().
			Str("goroutine", goroutine).
			Interface("panic", r).
			Str("stack", string(debug.Stack()))
		for k, v := range fields {
			event = event.Interface(k, v)
		}
		event.Msg("recovered goroutine panic")
	}
}
