package logging

import (
	"log/slog"
	"sync"
	"time"
)

// historyCapacity bounds the records kept for GET /api/logs.
const historyCapacity = 2000

// Entry is one log record as served by GET /api/logs. Source is the logger's
// component ("api", "wan", "routeros", ...) or "system" when it has none.
type Entry struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     string            `json:"level"`
	Source    string            `json:"source"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// History keeps the most recent log records, overwriting the oldest once
// full.
type History struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewHistory returns a History holding at most capacity records.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{entries: make([]Entry, capacity)}
}

// Append records e, dropping the oldest record when full.
func (h *History) Append(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.next] = e
	h.next++
	if h.next == len(h.entries) {
		h.next = 0
		h.full = true
	}
}

// Recent returns up to limit of the newest records, oldest first. A non-empty
// source keeps only that component's records; limit <= 0 means all of them.
func (h *History) Recent(limit int, source string) []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.lenLocked()
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Entry, 0, limit)
	for i := 1; i <= n && len(out) < limit; i++ {
		e := h.entries[(h.next-i+len(h.entries))%len(h.entries)]
		if source == "" || e.Source == source {
			out = append(out, e)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Len returns the number of records held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lenLocked()
}

// Reset drops every record.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.entries)
	h.next = 0
	h.full = false
}

func (h *History) lenLocked() int {
	if h.full {
		return len(h.entries)
	}
	return h.next
}

var (
	history     *History
	historyOnce sync.Once
)

// Records returns the process-wide history fed by the console handler.
func Records() *History {
	historyOnce.Do(func() {
		history = NewHistory(historyCapacity)
	})
	return history
}

func levelName(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}
