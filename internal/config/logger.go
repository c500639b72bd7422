package config

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// InitLogger initializes and returns a structured logger writing to stdout.
func InitLogger(level string) zerolog.Logger {
	return newLogger(os.Stdout, level)
}

// InitCLILogger returns a human-readable logger on stderr so log lines stay
// out of command output.
func InitCLILogger(level string) zerolog.Logger {
	return newLogger(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}, level)
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	parsedLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsedLevel == zerolog.NoLevel {
		parsedLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(parsedLevel)

	return zerolog.New(w).With().
		Timestamp().
		Str("service", "vpsdash").
		Logger()
}
