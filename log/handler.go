package log

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// NewWithFormatter creates a Logger that renders every record through the
// given formatter and writes one line per record to w.
func NewWithFormatter(w io.Writer, level slog.Level, f LogFormatter) *Logger {
	h := &formatterHandler{
		mu:        new(sync.Mutex),
		w:         w,
		level:     level,
		formatter: f,
	}
	return &Logger{inner: slog.New(h)}
}

// SlogLevel converts a LogLevel to its slog equivalent. FATAL has no slog
// counterpart and maps to slog.LevelError.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case INFO:
		return slog.LevelInfo
	case WARN:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func levelFromSlog(level slog.Level) LogLevel {
	switch {
	case level < slog.LevelInfo:
		return DEBUG
	case level < slog.LevelWarn:
		return INFO
	case level < slog.LevelError:
		return WARN
	default:
		return ERROR
	}
}

// formatterHandler adapts a LogFormatter to the slog.Handler interface.
// Handlers derived through WithAttrs and WithGroup share the write mutex so
// lines from sibling loggers never interleave.
type formatterHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Level
	formatter LogFormatter

	attrs  []slog.Attr // accumulated attrs, keys already group-qualified
	groups []string
}

func (h *formatterHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *formatterHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]interface{}, len(h.attrs)+r.NumAttrs())
	for _, attr := range h.attrs {
		fields[attr.Key] = attr.Value.Resolve().Any()
	}
	r.Attrs(func(attr slog.Attr) bool {
		fields[h.qualify(attr.Key)] = attr.Value.Resolve().Any()
		return true
	})
	line := h.formatter.Format(LogEntry{
		Timestamp: r.Time,
		Level:     levelFromSlog(r.Level),
		Message:   r.Message,
		Fields:    fields,
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line+"\n")
	return err
}

func (h *formatterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append([]slog.Attr{}, h.attrs...)
	for _, attr := range attrs {
		attr.Key = h.qualify(attr.Key)
		nh.attrs = append(nh.attrs, attr)
	}
	return &nh
}

func (h *formatterHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.groups = append(append([]string{}, h.groups...), name)
	return &nh
}

func (h *formatterHandler) qualify(key string) string {
	if len(h.groups) == 0 {
		return key
	}
	return strings.Join(h.groups, ".") + "." + key
}
