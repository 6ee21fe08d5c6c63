package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Entry is one captured log record.
type Entry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes"`
}

// Collector stores the log records of running activities, keyed by activity
// path. All methods are safe for concurrent use; one collector serves every
// activity of a run.
type Collector struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		entries: make(map[string][]Entry),
	}
}

// Logger wraps base so that every record logged through the result is also
// captured under the given activity path. Records still reach base's own
// handler, so capturing never changes what gets written to the process log.
func (c *Collector) Logger(base *slog.Logger, path string) *slog.Logger {
	return slog.New(&captureHandler{
		underlying: base.Handler(),
		collector:  c,
		path:       path,
	})
}

// Record appends an entry under the given activity path.
func (c *Collector) Record(path string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = append(c.entries[path], entry)
}

// Logs returns a copy of the entries captured for the given activity path.
func (c *Collector) Logs(path string) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries, ok := c.entries[path]
	if !ok {
		return nil
	}
	result := make([]Entry, len(entries))
	copy(result, entries)
	return result
}

// All returns a copy of every captured entry, grouped by activity path.
func (c *Collector) All() map[string][]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string][]Entry, len(c.entries))
	for path, entries := range c.entries {
		entriesCopy := make([]Entry, len(entries))
		copy(entriesCopy, entries)
		result[path] = entriesCopy
	}
	return result
}

// Drop removes the entries captured for the given activity path.
func (c *Collector) Drop(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Clear removes all captured entries.
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]Entry)
}

// captureHandler tees records into a Collector while passing them through to
// the underlying handler. WithAttrs and WithGroup must return capture
// handlers, not the underlying ones, or capturing would be lost on the first
// .With() call.
type captureHandler struct {
	underlying slog.Handler
	collector  *Collector
	path       string
	attrs      []slog.Attr
	groups     []string
}

// Enabled reports true for every level: capture is unconditional, the
// underlying handler still applies its own level filter in Handle.
func (h *captureHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	entry := Entry{
		Time:       r.Time,
		Level:      r.Level.String(),
		Message:    r.Message,
		Attributes: make(map[string]any, r.NumAttrs()+len(h.attrs)),
	}
	for _, attr := range h.attrs {
		entry.Attributes[attr.Key] = resolveValue(attr.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		entry.Attributes[a.Key] = resolveValue(a.Value)
		return true
	})

	h.collector.Record(h.path, entry)

	if h.underlying.Enabled(ctx, r.Level) {
		return h.underlying.Handle(ctx, r)
	}
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)

	return &captureHandler{
		underlying: h.underlying.WithAttrs(attrs),
		collector:  h.collector,
		path:       h.path,
		attrs:      newAttrs,
		groups:     h.groups,
	}
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups[len(h.groups)] = name

	return &captureHandler{
		underlying: h.underlying.WithGroup(name),
		collector:  h.collector,
		path:       h.path,
		attrs:      h.attrs,
		groups:     newGroups,
	}
}

// resolveValue converts a slog.Value into a plain serializable value.
// Errors become strings, groups become nested maps.
func resolveValue(v slog.Value) any {
	v = v.Resolve()

	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	case slog.KindGroup:
		attrs := v.Group()
		group := make(map[string]any, len(attrs))
		for _, attr := range attrs {
			group[attr.Key] = resolveValue(attr.Value)
		}
		return group
	default:
		return v.Any()
	}
}
