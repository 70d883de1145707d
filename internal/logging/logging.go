// Package logging builds the operational logger. It is separate from the
// execution log, which has a fixed CSV format.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options select the level, format and destination of the logger.
type Options struct {
	// Level is a logrus level name; empty means info.
	Level string
	// Format is "text" (default) or "json".
	Format string
	// File receives the log instead of Output when set. It is appended to.
	File string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New builds a logger. The returned closer releases the log file, if any.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()

	level := logrus.InfoLevel
	if opts.Level != "" {
		l, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = l
	}
	log.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, nil, fmt.Errorf("invalid log format %q: want text or json", opts.Format)
	}

	var closer io.Closer = nopCloser{}
	switch {
	case opts.File != "":
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening application log: %w", err)
		}
		log.SetOutput(f)
		closer = f
	case opts.Output != nil:
		log.SetOutput(opts.Output)
	default:
		log.SetOutput(os.Stderr)
	}
	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
