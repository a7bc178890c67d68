package util

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	Logger zerolog.Logger = zerolog.Nop()
)

func parseLevel(inlevel string) zerolog.Level {
	switch strings.ToLower(inlevel) {
	case "debug":
		return zerolog.DebugLevel
	case "trace":
		return zerolog.TraceLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func LogInit(inlevel string) {
	LogInitTo(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, inlevel)
}

// LogInitTo points the package logger at out. Tests use it to capture output.
func LogInitTo(out io.Writer, inlevel string) {
	level := parseLevel(inlevel)
	Logger = zerolog.New(out).Level(level).With().Timestamp().Caller().Logger()

	Logger.Info().Msgf("logging initialized at level %v", level)
}
