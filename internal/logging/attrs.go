package logging

import (
	"context"
	"log/slog"
	"slices"
	"time"
)

// Attr helpers keep call sites short and their keys greppable.

func Any(key string, value any) slog.Attr                { return slog.Any(key, value) }
func Bool(key string, value bool) slog.Attr              { return slog.Bool(key, value) }
func Duration(key string, value time.Duration) slog.Attr { return slog.Duration(key, value) }
func Int(key string, value int) slog.Attr                { return slog.Int(key, value) }
func Int64(key string, value int64) slog.Attr            { return slog.Int64(key, value) }
func String(key, value string) slog.Attr                 { return slog.String(key, value) }
func Strings(key string, values []string) slog.Attr      { return slog.Any(key, values) }

// Error records err under the "error" key. A nil error is logged as "<nil>".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// NewNop returns a logger that drops every record.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags every record of logger with component. A nil
// logger yields a no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

const defaultErrorHint = "check logs for details"

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact. Caller-supplied values win over the defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs,
		String(FieldEventType, eventType),
		String(FieldErrorHint, defaultErrorHint),
		String(FieldImpact, "operation completed with warnings"),
	)
	logger.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
}

// ErrorWithContext logs an error that always carries event_type and error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs,
		String(FieldEventType, eventType),
		String(FieldErrorHint, defaultErrorHint),
	)
	logger.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
}

func withDefaults(attrs []slog.Attr, defaults ...slog.Attr) []slog.Attr {
	for _, def := range defaults {
		present := slices.ContainsFunc(attrs, func(a slog.Attr) bool { return a.Key == def.Key })
		if !present {
			attrs = append(attrs, def)
		}
	}
	return attrs
}

func toArgs(attrs []slog.Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}
