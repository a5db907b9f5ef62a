// Package log provides the leveled logger used throughout the program. It wraps
// logrus so callers depend on a narrow interface instead of the logrus API, which
// keeps the rest of the codebase free to swap formatters or capture output in tests.
package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Fields is an alias for the structured fields attached to a log entry.
type Fields = logrus.Fields

// Logger is the leveled logger carried on the options value and passed to every
// component that needs to report progress.
type Logger interface {
	// WithField adds a single structured field to the returned entry.
	WithField(key string, value any) Logger

	// WithFields adds a set of structured fields to the returned entry.
	WithFields(fields Fields) Logger

	// WithError adds an error as a structured field to the returned entry.
	WithError(err error) Logger

	// SetOutput redirects all output of the underlying logger.
	SetOutput(w io.Writer)

	// SetLevel parses and sets the log level, e.g. "debug".
	SetLevel(str string) error

	Trace(args ...any)
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)

	Tracef(format string, args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type logger struct {
	*logrus.Entry
}

// New returns a Logger that writes to the given writer at the default Info level.
func New(w io.Writer) Logger {
	inner := logrus.New()
	inner.SetOutput(w)
	inner.SetLevel(logrus.InfoLevel)
	inner.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})

	return &logger{Entry: logrus.NewEntry(inner)}
}

func (l *logger) WithField(key string, value any) Logger {
	return &logger{Entry: l.Entry.WithField(key, value)}
}

func (l *logger) WithFields(fields Fields) Logger {
	return &logger{Entry: l.Entry.WithFields(fields)}
}

func (l *logger) WithError(err error) Logger {
	return &logger{Entry: l.Entry.WithError(err)}
}

func (l *logger) SetOutput(w io.Writer) {
	l.Entry.Logger.SetOutput(w)
}

func (l *logger) SetLevel(str string) error {
	level, err := logrus.ParseLevel(str)
	if err != nil {
		return err
	}

	l.Entry.Logger.SetLevel(level)

	return nil
}
