package utils

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger sets up the global logger with a console writer. When logDir is
// non-empty, lines are also written to a size-rotated file so a session's
// output survives the terminal.
func InitLogger(debug bool, logDir string) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
	}
	var out io.Writer = console
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err == nil {
			rotated := &lumberjack.Logger{
				Filename:   filepath.Join(logDir, "coomerdl.log"),
				MaxSize:    10, // MB
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}
			out = io.MultiWriter(console, rotated)
		}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
