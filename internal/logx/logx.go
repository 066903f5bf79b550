// Package logx configures the process-global zerolog logger used by
// the daemon and CLI entrypoint.
package logx

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the configured global logger. Configure replaces it;
// before Configure runs it defaults to a plain stderr writer.
var Logger zerolog.Logger

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func init() {
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Configure sets the global log level and chooses a pretty console
// writer when stderr is a terminal capable of color, a plain JSON
// writer otherwise (daemons are usually launched detached, writing to
// a log file, or with NO_COLOR/TERM=dumb set).
func Configure(level Level) {
	zerolog.SetGlobalLevel(parseLevel(level))

	pretty := isatty.IsTerminal(os.Stderr.Fd()) && termenv.NewOutput(os.Stderr).ColorProfile() != termenv.Ascii
	if pretty {
		Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	log.Logger = Logger
}

func parseLevel(level Level) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
