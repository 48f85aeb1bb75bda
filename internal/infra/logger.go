package infra

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logMaxSizeMB  = 50
	logMaxBackups = 5
	logMaxAgeDays = 30
)

// NewLogger constructs a zerolog.Logger for the service. Development builds get
// a console writer; when logFile is set, entries are also written to a rotating
// file next to journald output.
func NewLogger(appEnv, level, logFile string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if appEnv == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err == nil {
			out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
				Filename:   logFile,
				MaxSize:    logMaxSizeMB,
				MaxBackups: logMaxBackups,
				MaxAge:     logMaxAgeDays,
				Compress:   true,
			})
		}
	}

	return zerolog.New(out).
		Level(parseLevel(appEnv, level)).
		With().
		Timestamp().
		Logger()
}

func parseLevel(appEnv, level string) zerolog.Level {
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil && parsed != zerolog.NoLevel {
			return parsed
		}
	}
	if appEnv == "development" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// Logger aliases the zerolog.Logger so callers outside the infra package can
// depend on the logging contract without importing the third-party module
// directly.
type Logger = zerolog.Logger
