// Package logx is a minimal, dependency-free logger matching the bracketed
// "[nanvix][subsystem]" prefix the servers have always printed, plus a debug
// gate analogous to the bdev_debug flag in the block layer.
package logx

import (
	"fmt"
	"os"
)

/// Logger prints prefixed, line-oriented messages for a single subsystem.
type Logger struct {
	prefix string
	debug  bool
}

/// New returns a Logger that tags every line with "[nanvix][name]".
func New(name string) *Logger {
	return &Logger{prefix: fmt.Sprintf("[nanvix][%s]", name)}
}

/// SetDebug toggles whether Debugf actually prints.
func (l *Logger) SetDebug(on bool) {
	l.debug = on
}

/// Printf writes an always-on informational line.
func (l *Logger) Printf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s %s\n", l.prefix, fmt.Sprintf(format, args...))
}

/// Debugf writes a line only when debugging is enabled for this logger.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	fmt.Fprintf(os.Stdout, "%s [debug] %s\n", l.prefix, fmt.Sprintf(format, args...))
}

/// Warnf writes a warning line.
func (l *Logger) Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s [warn] %s\n", l.prefix, fmt.Sprintf(format, args...))
}
