package service_test

import (
	"context"
	"testing"
	"time"

	"restaurants/internal/service"
)

// ─────────────────────────────────────────────────────────────
// runningGuard tests
// ─────────────────────────────────────────────────────────────

func TestRunningGuard_TryLock(t *testing.T) {
	var g service.ExportedRunningGuard

	if !g.TryLock("pipeline") {
		t.Fatal("expected first TryLock to succeed")
	}
	if g.TryLock("pipeline") {
		t.Fatal("expected second TryLock for same key to fail")
	}
	if !g.TryLock("publish") {
		t.Fatal("expected TryLock for different key to succeed")
	}
	if !g.Running("pipeline") {
		t.Fatal("expected pipeline to be reported as running")
	}
	g.Unlock("pipeline")
	g.Unlock("publish")
	if g.Running("pipeline") {
		t.Fatal("expected pipeline to be released")
	}

	if !g.TryLock("pipeline") {
		t.Fatal("expected TryLock to succeed after unlock")
	}
	g.Unlock("pipeline")
}

func TestRunningGuard_WaitAll(t *testing.T) {
	var g service.ExportedRunningGuard

	if !g.TryLock("pipeline") {
		t.Fatal("expected lock to succeed")
	}

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		g.WaitAll(ctx)
		close(done)
	}()

	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Unlock("pipeline")
	}()

	select {
	case <-done:
		// success
	case <-time.After(1 * time.Second):
		t.Fatal("WaitAll timed out")
	}
}

// ─────────────────────────────────────────────────────────────
// MockEmitter tests
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, service.EventRunStarted, "run-1")
	m.Emit(ctx, service.EventRunCompleted, nil)

	if len(m.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(m.Events))
	}
	if m.Events[0].Event != service.EventRunStarted {
		t.Errorf("expected %q, got %q", service.EventRunStarted, m.Events[0].Event)
	}
	if m.Count(service.EventRunCompleted) != 1 {
		t.Errorf("expected one %q event", service.EventRunCompleted)
	}
}

func TestMockEmitter_LastEvent(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "a", "first")
	m.Emit(ctx, "b", "second")

	if m.Events[len(m.Events)-1].Event != "b" {
		t.Errorf("expected last event 'b', got %q", m.Events[len(m.Events)-1].Event)
	}
}
