// pkg/logger/logger.go
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

var (
	// Log is the global logger instance. It never writes to stdout, which
	// carries the transfer protocol.
	Log zerolog.Logger

	out io.Writer = os.Stderr
)

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	Log = newLogger(console(out), zerolog.InfoLevel)
}

func console(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()
}

// SetLevel sets the log level
func SetLevel(levelStr string) {
	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil || levelStr == "" {
		Log.Warn().Str("level", levelStr).Msg("invalid log level, defaulting to info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	Log = Log.Level(level)
}

// SetFormat switches between human readable console output and JSON lines.
func SetFormat(format string) {
	level := Log.GetLevel()
	switch strings.ToLower(format) {
	case "json":
		Log = newLogger(out, level)
	default:
		Log = newLogger(console(out), level)
	}
}

// SetOutput redirects log output, keeping the current level. Used by tests
// to capture diagnostics.
func SetOutput(w io.Writer) {
	out = w
	Log = newLogger(console(w), Log.GetLevel())
}

// Component returns a sub-logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}
