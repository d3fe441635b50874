// Package tslog provides a tinted structured logging implementation.
package tslog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
	"golang.org/x/term"
)

// Options controls how a [Logger] renders and routes log messages.
type Options struct {
	// Level is the minimum level written to the console.
	Level slog.Level

	// NoColor disables colors in console output.
	// Colors are always disabled when stderr is not a terminal.
	NoColor bool

	// NoTime omits timestamps from every sink.
	NoTime bool

	// ErrorSink, if not nil, additionally receives every message at [slog.LevelError]
	// and above, without colors.
	ErrorSink io.Writer
}

// Logger is an opinionated logging implementation that writes structured log messages,
// tinted with color by default, to [os.Stderr], and optionally copies errors to a
// separate sink.
type Logger struct {
	level   slog.Level
	noTime  bool
	handler slog.Handler
}

// New creates a new [*Logger] writing to [os.Stderr] with the given options.
func New(opts Options) *Logger {
	noColor := opts.NoColor || !term.IsTerminal(int(os.Stderr.Fd()))
	return NewWithWriter(os.Stderr, noColor, opts)
}

// NewWithWriter is like [New], but writes console output to w.
func NewWithWriter(w io.Writer, noColor bool, opts Options) *Logger {
	var handler slog.Handler = tint.NewHandler(w, &tint.Options{
		Level:   opts.Level,
		NoColor: noColor,
	})

	level := opts.Level
	if opts.ErrorSink != nil {
		handler = slogmulti.Fanout(handler, tint.NewHandler(opts.ErrorSink, &tint.Options{
			Level:   slog.LevelError,
			NoColor: true,
		}))
		level = min(level, slog.LevelError)
	}

	return &Logger{level, opts.NoTime, handler}
}

// Discard returns a [*Logger] that drops every message.
func Discard() *Logger {
	return &Logger{level: slog.LevelError + 1, noTime: true, handler: slog.DiscardHandler}
}

// WithAttrs returns a new [*Logger] with the given attributes included in every log message.
func (l *Logger) WithAttrs(attrs ...slog.Attr) *Logger {
	return &Logger{
		level:   l.level,
		noTime:  l.noTime,
		handler: l.handler.WithAttrs(attrs),
	}
}

// Debug logs the given message at [slog.LevelDebug].
func (l *Logger) Debug(msg string, attrs ...slog.Attr) {
	l.Log(slog.LevelDebug, msg, attrs...)
}

// Info logs the given message at [slog.LevelInfo].
func (l *Logger) Info(msg string, attrs ...slog.Attr) {
	l.Log(slog.LevelInfo, msg, attrs...)
}

// Warn logs the given message at [slog.LevelWarn].
func (l *Logger) Warn(msg string, attrs ...slog.Attr) {
	l.Log(slog.LevelWarn, msg, attrs...)
}

// Error logs the given message at [slog.LevelError].
func (l *Logger) Error(msg string, attrs ...slog.Attr) {
	l.Log(slog.LevelError, msg, attrs...)
}

// Enabled returns whether logging at the given level is enabled on any sink.
func (l *Logger) Enabled(level slog.Level) bool {
	return level >= l.level
}

// Log logs the given message at the given level.
func (l *Logger) Log(level slog.Level, msg string, attrs ...slog.Attr) {
	if !l.Enabled(level) {
		return
	}
	l.log(level, msg, attrs...)
}

// log implements the actual logging logic, so that its callers (the exported log methods)
// become eligible for mid-stack inlining.
func (l *Logger) log(level slog.Level, msg string, attrs ...slog.Attr) {
	var t time.Time
	if !l.noTime {
		t = time.Now()
	}
	r := slog.NewRecord(t, level, msg, 0)
	r.AddAttrs(attrs...)
	if !l.handler.Enabled(context.Background(), level) {
		return
	}
	if err := l.handler.Handle(context.Background(), r); err != nil {
		fmt.Fprintf(os.Stderr, "tslog: failed to write log message: %v\n", err)
	}
}

// Err is a convenience wrapper for [tint.Err].
func Err(err error) slog.Attr {
	return tint.Err(err)
}

// Zone returns a [slog.Attr] identifying a DNS zone.
func Zone(name string) slog.Attr {
	return slog.String("zone", name)
}

// Record returns a [slog.Attr] identifying a DNS record.
func Record(name string) slog.Attr {
	return slog.String("record", name)
}

// IP returns a [slog.Attr] for an IP address in its textual form.
func IP(key, ip string) slog.Attr {
	return slog.String(key, ip)
}
