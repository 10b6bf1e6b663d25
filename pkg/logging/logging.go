package logging

import (
	"fmt"
	"strings"
)

const (
	LogLevelDebug = 0
	LogLevelInfo  = 1
	LogLevelWarn  = 2
	LogLevelError = 3
)

type Logger interface {
	LogLevelf(level int, format string, args ...interface{})
	Debugf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
}

// ParseLevel maps a configuration level name onto a LogLevel constant
func ParseLevel(name string) (int, error) {
	switch strings.ToLower(name) {
	case "debug":
		return LogLevelDebug, nil
	case "info", "":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("invalid log level: %s", name)
	}
}

type prefixLogger struct {
	prefix string
	base   Logger
}

// WithPrefix returns a logger that prepends prefix to every message of base
func WithPrefix(base Logger, prefix string) Logger {
	return &prefixLogger{
		prefix: prefix,
		base:   base,
	}
}

func (l *prefixLogger) LogLevelf(level int, format string, args ...interface{}) {
	l.base.LogLevelf(level, l.prefix+format, args...)
}

func (l *prefixLogger) Debugf(msg string, args ...interface{}) {
	l.base.Debugf(l.prefix+msg, args...)
}

func (l *prefixLogger) Infof(msg string, args ...interface{}) {
	l.base.Infof(l.prefix+msg, args...)
}

func (l *prefixLogger) Warnf(msg string, args ...interface{}) {
	l.base.Warnf(l.prefix+msg, args...)
}

func (l *prefixLogger) Errorf(msg string, args ...interface{}) {
	l.base.Errorf(l.prefix+msg, args...)
}
