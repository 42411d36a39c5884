// Package log provides colored console logging and the status signaling
// used to surface I/O exceptions to operators.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var red = color.New(color.FgRed).FprintfFunc()
var blue = color.New(color.FgBlue).FprintfFunc()
var yellow = color.New(color.FgYellow).FprintfFunc()
var magenta = color.New(color.FgMagenta).FprintfFunc()

// ErrorMsg prints an error message to stderr in red color.
func ErrorMsg(format string, a ...interface{}) {
	red(os.Stderr, "[!] Error: "+terminate(format), a...)
}

// InfoMsg prints an informational message to stderr in blue color.
func InfoMsg(format string, a ...interface{}) {
	blue(os.Stderr, "[+] "+terminate(format), a...)
}

// Logger writes leveled messages to a single writer. Every method call
// produces exactly one record; concurrent calls never interleave.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	level uint
}

// NewLogger returns a logger writing to stderr at the given verbosity.
// Level 0 prints errors, warnings and info only.
func NewLogger(level uint) *Logger {
	return NewLoggerTo(os.Stderr, level)
}

// NewLoggerTo returns a logger writing to w.
func NewLoggerTo(w io.Writer, level uint) *Logger {
	return &Logger{out: w, level: level}
}

// Level returns the verbosity level of the logger.
func (l *Logger) Level() uint {
	if l == nil {
		return 0
	}
	return l.level
}

// ErrorMsg prints an error message in red.
func (l *Logger) ErrorMsg(format string, a ...interface{}) {
	l.write(red, "[!] Error: ", format, a...)
}

// WarnMsg prints a warning in magenta.
func (l *Logger) WarnMsg(format string, a ...interface{}) {
	l.write(magenta, "[!] Warning: ", format, a...)
}

// InfoMsg prints an informational message in blue.
func (l *Logger) InfoMsg(format string, a ...interface{}) {
	l.write(blue, "[+] ", format, a...)
}

// VerboseMsg prints a message only if the level is above zero.
func (l *Logger) VerboseMsg(format string, a ...interface{}) {
	l.DebugMsg(1, format, a...)
}

// DebugMsg prints a message only if the logger level is at least level.
func (l *Logger) DebugMsg(level uint, format string, a ...interface{}) {
	if l.Level() < level {
		return
	}
	l.write(yellow, "[v] ", format, a...)
}

// Signal surfaces an exception status together with its context.
func (l *Logger) Signal(status Status, context string) {
	l.write(red, "[!] ", "%s: %s", status, context)
}

// SignalFormatted surfaces an exception status with the source location
// that raised it and a formatted message.
func (l *Logger) SignalFormatted(status Status, file string, line int, format string, a ...interface{}) {
	msg := strings.TrimRight(fmt.Sprintf(format, a...), "\n")
	l.write(red, "[!] ", "%s at %s:%d %s", status, filepath.Base(file), line, msg)
}

func (l *Logger) write(fn func(io.Writer, string, ...interface{}), prefix, format string, a ...interface{}) {
	if l == nil {
		fn(os.Stderr, prefix+terminate(format), a...)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.out, prefix+terminate(format), a...)
}

func terminate(format string) string {
	if strings.HasSuffix(format, "\n") {
		return format
	}
	return format + "\n"
}
