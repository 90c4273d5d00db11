// Package logging provides the scheduler's verbosity-gated, timestamped
// logger. It follows the shape of the teacher's own package-level logger
// (a Level type, a package-level default instance, Printf-style helpers)
// generalized to the four levels and exact line prefix the scheduler's
// control-plane dialect requires.
package logging

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
)

// Level is the severity of a log line. Levels are ordered; a line is only
// emitted when its level is at or above the process-wide threshold.
type Level int

const (
	Info Level = iota
	Note
	Warning
	Error
)

// ParseLevel maps a config string ("info", "note", "warning", "error") to a
// Level. An unrecognized string defaults to Note, matching the config
// default of log_verbosity = "note".
func ParseLevel(s string) Level {
	switch s {
	case "info":
		return Info
	case "note":
		return Note
	case "warning":
		return Warning
	case "error":
		return Error
	default:
		return Note
	}
}

func (l Level) String() string {
	switch l {
	case Info:
		return "INFO"
	case Note:
		return "NOTE"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) color() *color.Color {
	switch l {
	case Warning:
		return color.New(color.FgYellow)
	case Error:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgHiBlack)
	}
}

// Logger emits lines prefixed "YYYY-MM-DD HH:MM:SS [LEVEL] Readyset[pid]:".
// Info and Note go to stdout; Warning and Error go to stderr. A Logger
// resolves os.Stdout/os.Stderr at each call rather than caching them at
// construction, so tests may swap the package-level streams around a call.
// A Logger is not safe for concurrent use across goroutines, which is fine
// because the scheduler process is single-threaded and synchronous (§5).
type Logger struct {
	threshold Level
	pid       int
}

// New creates a Logger gated at threshold.
func New(threshold Level) *Logger {
	return &Logger{
		threshold: threshold,
		pid:       os.Getpid(),
	}
}

// SetThreshold changes the verbosity gate. Intended to be called once at
// startup before any log emission (§9 design note: global, set-once
// verbosity).
func (l *Logger) SetThreshold(level Level) {
	l.threshold = level
}

func (l *Logger) prefix(level Level) string {
	return fmt.Sprintf("%s [%s] Readyset[%d]:", time.Now().Format("2006-01-02 15:04:05"), level, l.pid)
}

func (l *Logger) Logf(level Level, format string, args ...interface{}) {
	if level < l.threshold {
		return
	}
	line := fmt.Sprintf("%s %s\n", l.prefix(level), fmt.Sprintf(format, args...))
	stream := os.Stdout
	if level >= Warning {
		stream = os.Stderr
	}
	level.color().Fprint(stream, line)
}

func (l *Logger) Info(format string, args ...interface{})    { l.Logf(Info, format, args...) }
func (l *Logger) Note(format string, args ...interface{})    { l.Logf(Note, format, args...) }
func (l *Logger) Warning(format string, args ...interface{}) { l.Logf(Warning, format, args...) }
func (l *Logger) Error(format string, args ...interface{})   { l.Logf(Error, format, args...) }

// Default is the process-wide logger. The run driver calls SetThreshold
// once during startup (§4.5 step 2); every other component logs through it.
var Default = New(Note)
