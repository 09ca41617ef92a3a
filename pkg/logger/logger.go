package logx

import (
	"os"
	"strings"

	"github.com/mockflow-core-poc-v1/server/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
}

type LoggerOpts struct {
	Environment core.Environment
	// Level overrides the environment default when set (debug, info, warn, error).
	Level string
}

func safe(opts ...LoggerOpts) *LoggerOpts {
	if len(opts) == 0 {
		return DefaultLoggerOpts
	}
	return &opts[0]
}

func Init(opts ...LoggerOpts) {
	o := safe(opts...)
	if o.Environment.IsProduction() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		log.Logger = log.Logger.Level(parseLevel(o.Level, zerolog.InfoLevel))
	} else {
		log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Caller().Logger()
		log.Logger = log.Logger.Level(parseLevel(o.Level, zerolog.DebugLevel))
	}
}

func parseLevel(s string, fallback zerolog.Level) zerolog.Level {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return fallback
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return fallback
	}
	return lvl
}

// Session returns a child logger tagged with the session id.
func Session(sessionID string) zerolog.Logger {
	return log.Logger.With().Str("session_id", sessionID).Logger()
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
