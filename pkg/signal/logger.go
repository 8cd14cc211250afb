package signal

import (
	"fmt"
	"log"
	"os"
)

// Logger is the logging abstraction used by this module. It allows swapping
// in a structured logger without the core depending on one.
type Logger interface {
	// Errorf logs a formatted error message.
	Errorf(format string, args ...interface{})

	// Warnf logs a formatted warning message.
	Warnf(format string, args ...interface{})

	// Infof logs a formatted informational message.
	Infof(format string, args ...interface{})

	// Debugf logs a formatted debug message.
	Debugf(format string, args ...interface{})
}

// defaultLogger implements Logger on the standard log package, with a level
// prefix per line. Errors and warnings go to stderr, the rest to stdout.
type defaultLogger struct {
	err *log.Logger
	out *log.Logger
}

// NewDefaultLogger creates the default Logger implementation.
func NewDefaultLogger() Logger {
	return &defaultLogger{
		err: log.New(os.Stderr, "", log.LstdFlags),
		out: log.New(os.Stdout, "", log.LstdFlags),
	}
}

func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	l.err.Output(2, "[ERROR] "+fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	l.err.Output(2, "[WARN] "+fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Infof(format string, args ...interface{}) {
	l.out.Output(2, "[INFO] "+fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	l.out.Output(2, "[DEBUG] "+fmt.Sprintf(format, args...))
}

// NopLogger returns a Logger that discards everything. Useful in tests.
func NopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}
