// Package logging provides leveled, colorized diagnostic output for itmsink.
//
// It follows the same shape as a typical CLI's stderr printer: package-level
// functions backed by a single writer, a global color toggle, and a verbosity
// threshold read from viper so that -v/-vv/-vvv/-vvvv raise how much gets
// printed without plumbing a logger through every call site.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/viper"
)

// Level is a log severity, ordered least to most verbose.
type Level int

const (
	Error Level = iota
	Warn
	Info
	Debug
	Trace
)

const verboseLevelKey = "verbose-level"

// SetVerbosity records how many times -v was given; each call to Logf at a
// level beyond n is suppressed.
func SetVerbosity(n int) {
	viper.Set(verboseLevelKey, n)
}

var (
	Stderr = New(os.Stderr)
	Color  = aurora.NewAurora(true)
)

// SwitchToPlain disables ANSI colorization, e.g. when stderr isn't a TTY.
func SwitchToPlain() {
	Color = aurora.NewAurora(false)
}

type Logger struct {
	out io.Writer
}

func New(out io.Writer) *Logger {
	return &Logger{out: out}
}

func (l *Logger) enabled(level Level) bool {
	return int(level) <= viper.GetInt(verboseLevelKey)
}

func (l *Logger) tag(level Level) string {
	switch level {
	case Error:
		return Color.Red("[ERROR] ").String()
	case Warn:
		return Color.Yellow("[WARN] ").String()
	case Info:
		return Color.Blue("[INFO] ").String()
	case Debug:
		return Color.Magenta("[DEBUG] ").String()
	default:
		return Color.Cyan("[TRACE] ").String()
	}
}

func (l *Logger) Logf(level Level, format string, args ...interface{}) {
	if !l.enabled(level) {
		return
	}
	fmt.Fprint(l.out, l.tag(level))
	fmt.Fprintf(l.out, format, args...)
	fmt.Fprintln(l.out)
}

func (l *Logger) Errorf(format string, args ...interface{}) { l.Logf(Error, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.Logf(Warn, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.Logf(Info, format, args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.Logf(Debug, format, args...) }
func (l *Logger) Tracef(format string, args ...interface{}) { l.Logf(Trace, format, args...) }

func Errorf(format string, args ...interface{}) { Stderr.Errorf(format, args...) }
func Warnf(format string, args ...interface{})  { Stderr.Warnf(format, args...) }
func Infof(format string, args ...interface{})  { Stderr.Infof(format, args...) }
func Debugf(format string, args ...interface{}) { Stderr.Debugf(format, args...) }
func Tracef(format string, args ...interface{}) { Stderr.Tracef(format, args...) }
