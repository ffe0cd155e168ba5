// Package logbuffer keeps the most recent log records in memory for the
// admin log viewer.
package logbuffer

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity is used when a ring is created with a non-positive size.
const DefaultCapacity = 500

// Entry is one captured log record.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Attrs   map[string]any `json:"attrs,omitempty"`

	level slog.Level
}

// Buffer stores log entries and returns the newest ones.
type Buffer interface {
	Add(e Entry)
	// Entries returns up to limit entries at or above minLevel, newest first.
	// A non-positive limit returns every matching entry.
	Entries(minLevel slog.Level, limit int) []Entry
	Len() int
}

// Ring is a fixed-capacity Buffer that overwrites its oldest entry when full.
type Ring struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// NewRing creates a ring holding up to capacity entries.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{entries: make([]Entry, capacity)}
}

// Add appends an entry, evicting the oldest when full.
func (r *Ring) Add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// Len returns the number of stored entries.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.entries)
}

// Entries returns matching entries, newest first.
func (r *Ring) Entries(minLevel slog.Level, limit int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.next
	if r.full {
		n = len(r.entries)
	}

	out := make([]Entry, 0, min(n, max(limit, 0)))
	for i := 0; i < n; i++ {
		idx := (r.next - 1 - i + len(r.entries)) % len(r.entries)
		e := r.entries[idx]
		if e.level < minLevel {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// ParseLevel converts a level name to slog.Level. Unknown names yield debug,
// so an empty filter returns everything.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// Handler is a slog.Handler that forwards records to next and copies them into a Buffer.
type Handler struct {
	next   slog.Handler
	buf    Buffer
	attrs  []slog.Attr
	groups []string
}

// NewHandler wraps next so that every handled record is also stored in buf.
func NewHandler(next slog.Handler, buf Buffer) *Handler {
	return &Handler{next: next, buf: buf}
}

// Enabled reports whether the wrapped handler accepts level.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle stores the record and passes it on.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		addAttr(attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(attrs, prefix, a)
		return true
	})

	e := Entry{
		Time:    r.Time.UTC(),
		Level:   r.Level.String(),
		Message: r.Message,
		level:   r.Level,
	}
	if len(attrs) > 0 {
		e.Attrs = attrs
	}
	h.buf.Add(e)

	return h.next.Handle(ctx, r)
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := strings.Join(h.groups, ".")
	scoped := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	scoped = append(scoped, h.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		scoped = append(scoped, a)
	}
	return &Handler{next: h.next.WithAttrs(attrs), buf: h.buf, attrs: scoped, groups: h.groups}
}

// WithGroup returns a handler that nests later attrs under name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := append(append([]string(nil), h.groups...), name)
	return &Handler{next: h.next.WithGroup(name), buf: h.buf, attrs: h.attrs, groups: groups}
}

func addAttr(dst map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			addAttr(dst, key, ga)
		}
		return
	}
	dst[key] = a.Value.Any()
}
