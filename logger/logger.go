package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns the application logger. An empty path logs to stdout in the
// human readable console format, otherwise JSON lines are appended to the
// file. An empty level means info.
func New(path, level string) (zerolog.Logger, error) {
	if len(path) == 0 {
		return NewWriter(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}, level)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0666)
	if err != nil {
		return zerolog.Nop(), err
	}
	l, err := NewWriter(f, level)
	if err != nil {
		f.Close()
		return l, err
	}
	l.Info().Str("path", path).Msg("initializing log file")
	return l, nil
}

// NewWriter returns a logger writing to w
func NewWriter(w io.Writer, level string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		if lvl, err = zerolog.ParseLevel(level); err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", level, err)
		}
	}
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("app", "qmgr").
		Logger(), nil
}
