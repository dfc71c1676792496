// Package logging defines the leveled logger injected into every component
// of the SDK. The default implementation delegates to ipfs/go-log named
// subsystem loggers; tests use Nop.
package logging

import (
	golog "github.com/ipfs/go-log/v2"
)

// Logger is the logging surface components depend on.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// New returns a logger for the named subsystem.
func New(subsystem string) Logger {
	return golog.Logger(subsystem)
}

// SetLevel adjusts the level of a named subsystem logger ("debug", "info",
// "warn", "error"). Unknown levels are ignored.
func SetLevel(subsystem, level string) {
	_ = golog.SetLogLevel(subsystem, level)
}

// Nop discards all log output.
type Nop struct{}

func (Nop) Debugf(string, ...any) {}
func (Nop) Infof(string, ...any)  {}
func (Nop) Warnf(string, ...any)  {}
func (Nop) Errorf(string, ...any) {}
