package service

import (
	"context"
	"log/slog"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples the service from its observers
// ─────────────────────────────────────────────────────────────

// Events emitted by PipelineService.
const (
	EventRunStarted    = "pipeline:started"
	EventRunCompleted  = "pipeline:completed"
	EventRunFailed     = "pipeline:failed"
	EventPublished     = "pipeline:published"
	EventPublishFailed = "pipeline:publish-failed"
	EventRunSkipped    = "pipeline:skipped"
)

// EventEmitter receives lifecycle notifications from the service.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// LogEmitter writes every event to a structured logger.
type LogEmitter struct {
	Logger *slog.Logger
}

func (l *LogEmitter) Emit(ctx context.Context, event string, data any) {
	l.Logger.InfoContext(ctx, "event", "event", event, "data", data)
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Count returns how many times event was emitted.
func (m *MockEmitter) Count(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Events {
		if e.Event == event {
			n++
		}
	}
	return n
}
