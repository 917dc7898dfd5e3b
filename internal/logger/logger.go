// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log is the global logger instance.
var Log zerolog.Logger

// Logs go to stderr so command output on stdout stays machine-readable.
var output io.Writer = os.Stderr

func init() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	setConsole()
}

// SetLevel sets the global log level from a name such as "warn". Empty or
// unknown names mean info.
func SetLevel(level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

// SetJSON switches to JSON output (for production).
func SetJSON() {
	Log = zerolog.New(output).
		With().
		Timestamp().
		Logger()
}

// SetFormat selects JSON output for "json" and console output otherwise.
func SetFormat(format string) {
	if format == "json" {
		SetJSON()
		return
	}
	setConsole()
}

// SetOutput redirects the global logger, keeping the current format.
func SetOutput(w io.Writer, format string) {
	output = w
	SetFormat(format)
}

func setConsole() {
	Log = zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	}).
		With().
		Timestamp().
		Caller().
		Logger()
}
