package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const timeFormat = "02-01-2006 15:04:05"

// New constructs the root zerolog logger for the intake service. Development
// environments get human readable console output; everything else emits JSON
// so log aggregation stays trivial.
func New(env, level string, writers ...io.Writer) (*zerolog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = timeFormat
	zerolog.DurationFieldUnit = time.Millisecond

	var output io.Writer
	switch {
	case len(writers) > 0:
		output = io.MultiWriter(writers...)
	case strings.EqualFold(env, "development") || strings.EqualFold(env, "dev"):
		cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat}
		cw.FieldsExclude = []string{zerolog.TimestampFieldName}
		output = cw
	default:
		output = os.Stdout
	}

	root := zerolog.New(output).With().Timestamp().Logger().Level(lvl)
	return &root, nil
}

// Component derives a child logger tagged with the component name.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

func parseLevel(level string) (zerolog.Level, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		level = zerolog.InfoLevel.String()
	}
	return zerolog.ParseLevel(strings.ToLower(level))
}
