package observability

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	globalLogger zerolog.Logger
	initialized  bool
)

// InitLogger initializes the global structured logger.
func InitLogger(level string, pretty bool) {
	if initialized {
		return
	}

	logLevel := zerolog.InfoLevel
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	case "fatal":
		logLevel = zerolog.FatalLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		output := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
		globalLogger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		globalLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	log.Logger = globalLogger
	initialized = true
}

// GetLogger returns the global logger.
func GetLogger() zerolog.Logger {
	if !initialized {
		InitLogger("info", false)
	}
	return globalLogger
}

// ComponentLogger returns a logger tagged with a component name, so every
// state transition and failure line carries its origin.
func ComponentLogger(component string) zerolog.Logger {
	return GetLogger().With().Str("component", component).Logger()
}

// NewQuestionID generates a correlation ID for one question/answer exchange.
func NewQuestionID() string {
	return uuid.New().String()
}
