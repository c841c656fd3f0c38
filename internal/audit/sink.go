package audit

import (
	"context"
	"log/slog"
	"sync"
)

// LogSink writes events as structured log lines.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(ctx context.Context, e Event) error {
	s.logger.InfoContext(ctx, "audit",
		"action", e.Action,
		"wizard", e.Wizard,
		"session", e.Session,
		"step", e.Step,
		"reference", e.Reference,
		"request_id", e.RequestID,
		"device", e.Device,
		"timestamp", e.Timestamp,
	)
	return nil
}

// MemorySink keeps events in memory for tests and the demo binary.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of everything written so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}
