package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/geoguard/geoguard/pkg/contextkeys"
)

// LogLevel is the minimum severity a Logger writes
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levels = [...]struct {
	name string
	slog slog.Level
}{
	DebugLevel: {"DEBUG", slog.LevelDebug},
	InfoLevel:  {"INFO", slog.LevelInfo},
	WarnLevel:  {"WARN", slog.LevelWarn},
	ErrorLevel: {"ERROR", slog.LevelError},
}

func (l LogLevel) valid() bool { return l >= DebugLevel && l <= ErrorLevel }

func (l LogLevel) String() string {
	if !l.valid() {
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
	return levels[l].name
}

func (l LogLevel) slogLevel() slog.Level {
	if !l.valid() {
		return slog.LevelInfo
	}
	return levels[l].slog
}

// ParseLevel reads "debug", "info", "warn"/"warning" or "error" in any case.
// Anything else is InfoLevel.
func ParseLevel(s string) LogLevel {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARNING" {
		return WarnLevel
	}
	for l := range levels {
		if levels[l].name == name {
			return LogLevel(l)
		}
	}
	return InfoLevel
}

// Logger writes JSON lines through slog. Loggers derived with WithField and
// friends share their root's level, so SetLevel on the root reaches them all.
type Logger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// NewLogger writes to output, or stdout when output is nil
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	lv := new(slog.LevelVar)
	lv.Set(level.slogLevel())
	return &Logger{
		logger: slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: lv})),
		level:  lv,
	}
}

func (l *Logger) derive(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...), level: l.level}
}

// SetLevel changes the level of l and every logger derived from it
func (l *Logger) SetLevel(level LogLevel) {
	l.level.Set(level.slogLevel())
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.derive(key, value)
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]any, 0, 2*len(fields))
	for k, v := range fields {
		args = append(args, k, v)
	}
	return l.derive(args...)
}

// WithError adds err's text under "error"; a nil err returns l unchanged
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.derive("error", err.Error())
}

func (l *Logger) Debug(message string) { l.logger.Debug(message) }
func (l *Logger) Info(message string)  { l.logger.Info(message) }
func (l *Logger) Warn(message string)  { l.logger.Warn(message) }
func (l *Logger) Error(message string) { l.logger.Error(message) }

func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

// FromContext tags base with the request, user and tenant ids found in ctx
func FromContext(ctx context.Context, base *Logger) *Logger {
	var args []any
	for _, f := range []struct{ key, value string }{
		{"request_id", contextkeys.GetRequestID(ctx)},
		{"user_id", contextkeys.GetUserID(ctx)},
		{"tenant_id", contextkeys.GetTenantID(ctx)},
	} {
		if f.value != "" {
			args = append(args, f.key, f.value)
		}
	}
	if len(args) == 0 {
		return base
	}
	return base.derive(args...)
}
