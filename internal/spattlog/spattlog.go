// Package spattlog is a direct port of original_source/src/common/micro.hh's
// LOG/LOG_DBG macros into the teacher's own fmt.Fprintf(os.Stderr, ...)
// idiom (see internal/watcher and internal/index in the teacher tree) —
// a bracketed tag, no structured fields, no external logging library.
package spattlog

import (
	"fmt"
	"os"
	"time"
)

// Debug gates LOG_DBG output; LOG output is always printed, matching the
// original's unconditional LOG vs. debug-build-only LOG_DBG.
var Debug = false

// Logger tags every line with a fixed prefix, the way each original_source
// call site effectively tags itself via __func__.
type Logger struct {
	tag string
}

// New returns a Logger that prefixes every line with tag, e.g. "builder" or
// "watch".
func New(tag string) *Logger {
	return &Logger{tag: tag}
}

// Infof prints an always-on log line (original_source's LOG).
func (l *Logger) Infof(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[%s][%s] %s\n", time.Now().Format("15:04:05"), l.tag, fmt.Sprintf(format, args...))
}

// Debugf prints a line only when Debug is set (original_source's LOG_DBG).
func (l *Logger) Debugf(format string, args ...interface{}) {
	if !Debug {
		return
	}
	fmt.Fprintf(os.Stderr, "[%s][%s][debug] %s\n", time.Now().Format("15:04:05"), l.tag, fmt.Sprintf(format, args...))
}
