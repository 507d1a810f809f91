package logging

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Logger writes level-filtered lines to an underlying writer, with the
// error/warn levels colored red/yellow when that writer is a terminal.
// A nil *Logger is valid and logs nothing, the same contract the teacher's
// own pkg/logging.Logger makes, so a doer that never configured a logger
// doesn't need a separate code path.
type Logger struct {
	level  Level
	color  bool
	prefix string
	out    *log.Logger
}

// New constructs a Logger writing to w at or below level. useColor enables
// ANSI coloring of warn/error lines; NewStderr below decides that
// automatically based on whether stderr is a terminal.
func New(w io.Writer, level Level, useColor bool) *Logger {
	return &Logger{
		level: level,
		color: useColor,
		out:   log.New(w, "", log.LstdFlags),
	}
}

// NewStderr constructs a Logger writing to os.Stderr at level, coloring
// output only when stderr is attached to a terminal (checked via
// mattn/go-isatty, same as the teacher's CLI color gating).
func NewStderr(level Level) *Logger {
	return New(os.Stderr, level, isatty.IsTerminal(os.Stderr.Fd()))
}

// Sublogger creates a logger that shares this one's level/output but
// prefixes every line with name, nesting under any existing prefix.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &Logger{level: l.level, color: l.color, prefix: prefix, out: l.out}
}

func (l *Logger) line(format string, v ...interface{}) string {
	msg := fmt.Sprintf(format, v...)
	if l.prefix != "" {
		return fmt.Sprintf("[%s] %s", l.prefix, msg)
	}
	return msg
}

func (l *Logger) logAt(level Level, format string, v ...interface{}) {
	if l == nil || level > l.level {
		return
	}
	l.out.Print(l.line(format, v...))
}

// Error logs at LevelError, in red when coloring is enabled.
func (l *Logger) Error(format string, v ...interface{}) {
	if l == nil || LevelError > l.level {
		return
	}
	msg := l.line(format, v...)
	if l.color {
		msg = color.RedString(msg)
	}
	l.out.Print(msg)
}

// Warn logs at LevelWarn, in yellow when coloring is enabled.
func (l *Logger) Warn(format string, v ...interface{}) {
	if l == nil || LevelWarn > l.level {
		return
	}
	msg := l.line(format, v...)
	if l.color {
		msg = color.YellowString(msg)
	}
	l.out.Print(msg)
}

// Info logs at LevelInfo.
func (l *Logger) Info(format string, v ...interface{}) { l.logAt(LevelInfo, format, v...) }

// Debug logs at LevelDebug.
func (l *Logger) Debug(format string, v ...interface{}) { l.logAt(LevelDebug, format, v...) }

// Trace logs at LevelTrace, the level used for every command/response
// exchanged with a doer when debugging the wire protocol itself.
func (l *Logger) Trace(format string, v ...interface{}) { l.logAt(LevelTrace, format, v...) }
