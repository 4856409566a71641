package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so packages outside infra can accept a logger
// without importing zerolog themselves.
type Logger = zerolog.Logger

// NewLogger constructs the service logger. Development builds log at debug
// level through a human readable console writer.
func NewLogger(appEnv string) Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", "movieposter").
		Logger()

	if appEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return logger
}

// LoggerOrDiscard dereferences l, or returns a logger that drops everything.
func LoggerOrDiscard(l *Logger) Logger {
	if l != nil {
		return *l
	}
	return zerolog.New(io.Discard)
}
