// Package logging builds the process's zerolog.Logger. Unlike
// houzhh15-mote's pkg/logger, this is never a package-level global: each
// cmd/aipgw subcommand builds the logger it needs (the CLI's stderr
// diagnostics in validate, the audit sink's logger in demo) and passes it
// by value, so tests can build an isolated logger writing to a buffer.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing to out (os.Stderr if nil) at the
// given level, in either "json" (default) or "console" format.
func New(level, format string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	if strings.ToLower(format) == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02T15:04:05Z07:00"}
	}
	return zerolog.New(out).Level(parseLevel(level)).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
