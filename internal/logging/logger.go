package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"stemworker/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	Development bool
}

// New builds a logger writing to every entry of OutputPaths ("stdout",
// "stderr" or a file path). Format is "console" (default) or "json".
func New(opts Options) (*slog.Logger, error) {
	out, err := openOutputs(opts.OutputPaths)
	if err != nil {
		return nil, err
	}
	level := parseLevel(opts.Level)
	addSource := opts.Development || level <= slog.LevelDebug

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		return slog.New(&consoleHandler{mu: &sync.Mutex{}, out: out, level: level, addSource: addSource}), nil
	case "json":
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:       level,
			AddSource:   addSource,
			ReplaceAttr: jsonKeys,
		})), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// NewFromConfig builds a logger from cfg.Logging that writes to stdout and,
// when logPath is set, to that file.
func NewFromConfig(cfg *config.Config, logPath string) (*slog.Logger, error) {
	opts := Options{Level: "info", OutputPaths: []string{"stdout"}}
	if cfg != nil {
		opts.Level = cfg.Logging.Level
		opts.Format = cfg.Logging.Format
	}
	if logPath != "" {
		opts.OutputPaths = append(opts.OutputPaths, logPath)
	}
	return New(opts)
}

func parseLevel(level string) slog.Level {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return parsed
}

func openOutputs(paths []string) (io.Writer, error) {
	var writers []io.Writer
	var seen []string
	for _, raw := range paths {
		target := strings.TrimSpace(raw)
		if target == "" || slices.Contains(seen, target) {
			continue
		}
		seen = append(seen, target)
		switch target {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, fmt.Errorf("ensure log directory: %w", err)
			}
			file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", target, err)
			}
			writers = append(writers, file)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func jsonKeys(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
		}
	case slog.LevelKey:
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(filepath.Base(src.File) + ":" + strconv.Itoa(src.Line))
		}
	}
	return attr
}

// consoleHandler writes one line per record:
//
//	2026-01-02T15:04:05Z INFO workflow [3f2a9c1e] message key=value
//
// The component and execution id are lifted out of the attributes into the
// line header. Attributes added through WithAttrs are rendered once.
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     slog.Level
	addSource bool

	component   string
	executionID string
	group       string
	preset      []byte
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	line := *h
	var attrs bytes.Buffer
	attrs.Write(h.preset)
	record.Attrs(func(attr slog.Attr) bool {
		line.appendAttr(&attrs, h.group, attr)
		return true
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var buf bytes.Buffer
	buf.WriteString(ts.UTC().Format(time.RFC3339))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	if line.component != "" {
		buf.WriteString(" " + line.component)
	}
	if id := line.executionID; id != "" {
		buf.WriteString(" [" + id[:min(len(id), 8)] + "]")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(" " + msg)
	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&buf, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	buf.Write(attrs.Bytes())
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	var buf bytes.Buffer
	buf.Write(h.preset)
	for _, attr := range attrs {
		next.appendAttr(&buf, h.group, attr)
	}
	next.preset = buf.Bytes()
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = h.group + name + "."
	return &next
}

// appendAttr renders attr as " key=value", recording the header fields on h
// instead of rendering them.
func (h *consoleHandler) appendAttr(buf *bytes.Buffer, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix += attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			h.appendAttr(buf, prefix, member)
		}
		return
	}
	key := prefix + attr.Key
	switch {
	case key == FieldComponent && h.component == "":
		h.component = renderValue(attr.Value)
		return
	case key == FieldExecutionID && h.executionID == "":
		h.executionID = strings.TrimSpace(attr.Value.String())
		return
	case key == FieldComponent || key == FieldExecutionID:
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(key)
	buf.WriteByte('=')
	buf.WriteString(renderValue(attr.Value))
}

func renderValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindString:
		s = v.String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		return v.String()
	}
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}
