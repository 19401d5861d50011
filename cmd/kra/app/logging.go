package app

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger writes human-readable logs to stderr, or JSON lines to a
// rotated file when file is set. The returned closer is nil for stderr.
func newLogger(stderr io.Writer, level, file string) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.WarnLevel
	}

	if file != "" {
		rotated := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10,
			MaxAge:     14,
			MaxBackups: 3,
		}
		return zerolog.New(rotated).Level(lvl).With().Timestamp().Logger(), rotated, nil
	}

	console := zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}
	return zerolog.New(console).Level(lvl).With().Timestamp().Logger(), nil, nil
}
