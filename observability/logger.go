// Package observability defines shared logging and metrics primitives.
package observability

import (
	"fmt"
	"log"
)

// Logger captures structured logging behaviours shared across layers.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field represents a key/value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

var defaultLogger Logger = noopLogger{}

// SetLogger overrides the global logger used by the system.
func SetLogger(logger Logger) {
	if logger == nil {
		defaultLogger = noopLogger{}
		return
	}
	defaultLogger = logger
}

// Log returns the current global logger instance.
func Log() Logger {
	return defaultLogger
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}

// NewStdLogger wraps the standard library logger for tools that have no
// structured sink; fields are rendered as trailing key=value pairs.
func NewStdLogger(l *log.Logger) Logger {
	if l == nil {
		l = log.Default()
	}
	return stdLogger{l: l}
}

type stdLogger struct {
	l *log.Logger
}

func (s stdLogger) Debug(msg string, fields ...Field) { s.print("DEBUG", msg, fields) }
func (s stdLogger) Info(msg string, fields ...Field)  { s.print("INFO", msg, fields) }
func (s stdLogger) Error(msg string, fields ...Field) { s.print("ERROR", msg, fields) }

func (s stdLogger) print(level, msg string, fields []Field) {
	args := make([]any, 0, 2+len(fields))
	args = append(args, level, msg)
	for _, f := range fields {
		args = append(args, f.Key+"="+formatValue(f.Value))
	}
	s.l.Println(args...)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case error:
		return t.Error()
	default:
		return fmt.Sprint(v)
	}
}
