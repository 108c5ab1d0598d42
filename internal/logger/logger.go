package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide logger
var Logger = logrus.New()

// Options controls where and how verbosely the logger writes
type Options struct {
	Level string
	// File, when set, receives a copy of every entry and is rotated at MaxSizeMB.
	File      string
	MaxSizeMB int
	Output    io.Writer
}

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(logrus.InfoLevel)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// Setup configures Logger from opts. The returned closer releases the log file.
func Setup(opts Options) (io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	Logger.SetLevel(level)

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	if opts.File == "" {
		Logger.SetOutput(out)
		return nopCloser{}, nil
	}

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	file := &lumberjack.Logger{
		Filename: opts.File,
		MaxSize:  maxSize,
	}
	Logger.SetOutput(io.MultiWriter(out, file))
	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ParseLevel maps a level name to a logrus level; empty means info
func ParseLevel(level string) (logrus.Level, error) {
	if strings.TrimSpace(level) == "" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q", level)
	}
	return lvl, nil
}

// WithFields creates a new entry with the given fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithField creates a new entry with a single field
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithError creates a new entry with an error field
func WithError(err error) *logrus.Entry {
	return Logger.WithError(err)
}
