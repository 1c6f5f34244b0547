package utils

import (
	"os"

	"github.com/rs/zerolog"
)

// Log is the logger shared by every package, replaced by SetLogger at startup.
var Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// SetLogger configures Log for console output. Debug level is enabled by the
// given flag or by a non empty PARANOIDNAS_DEBUG env var.
func SetLogger(debug bool) {
	level := zerolog.InfoLevel
	if debug || os.Getenv("PARANOIDNAS_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}
