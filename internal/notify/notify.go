// ABOUTME: Toast-style notices emitted by lifecycle operations
// ABOUTME: Sinks are fire-and-forget; Feed keeps a bounded history for polling views

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Kind classifies a notice.
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
	KindCleared Kind = "cleared"
	KindError   Kind = "error"
)

// Notice is a short human-readable event.
type Notice struct {
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AgentID     string    `json:"agent_id,omitempty"`
	Time        time.Time `json:"time"`
}

// Sink receives notices. Notify must not block.
type Sink interface {
	Notify(n Notice)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(n Notice)

// Notify calls f(n).
func (f SinkFunc) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Sink = SinkFunc(func(Notice) {})

// Multi fans a notice out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(n Notice) {
		for _, s := range sinks {
			s.Notify(n)
		}
	})
}

// LogSink writes notices to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. Pass nil logger for default.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "notify")}
}

// Notify logs errors at warn level and everything else at info.
func (l *LogSink) Notify(n Notice) {
	level := slog.LevelInfo
	if n.Kind == KindError {
		level = slog.LevelWarn
	}
	l.logger.Log(context.Background(), level, n.Title,
		"kind", n.Kind,
		"description", n.Description,
		"agent_id", n.AgentID)
}

// Feed keeps the most recent notices in memory.
type Feed struct {
	mu      sync.RWMutex
	notices []Notice
	keep    int
}

// NewFeed creates a Feed that retains at most keep notices.
// Non-positive values default to 50.
func NewFeed(keep int) *Feed {
	if keep <= 0 {
		keep = 50
	}
	return &Feed{keep: keep}
}

// Notify records the notice, evicting the oldest when full.
func (f *Feed) Notify(n Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.notices = append(f.notices, n)
	if over := len(f.notices) - f.keep; over > 0 {
		f.notices = append([]Notice(nil), f.notices[over:]...)
	}
}

// Recent returns up to limit notices, newest first. limit <= 0 returns all.
func (f *Feed) Recent(limit int) []Notice {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := len(f.notices)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Notice, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, f.notices[i])
	}
	return out
}
