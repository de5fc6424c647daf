// Package logging holds the process-wide zerolog logger. Output always goes
// to stderr so stdout stays clean for piped search results.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger = zerolog.New(io.Discard)

// Init configures the global logger with the given level. Unknown levels
// fall back to warn.
func Init(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.WarnLevel
	}

	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	log = zerolog.New(console).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// InitQuiet discards all log output. Used by the TUI, which owns the terminal.
func InitQuiet() {
	log = zerolog.New(io.Discard)
}

func Debug() *zerolog.Event { return log.Debug() }

func Info() *zerolog.Event { return log.Info() }

func Warn() *zerolog.Event { return log.Warn() }

func Error() *zerolog.Event { return log.Error() }
