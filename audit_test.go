package authgate

import (
	"context"
	"sync"
	"testing"
)

type captureSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *captureSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *captureSink) snapshot() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditEvent(nil), s.events...)
}

// gateSink blocks every delivery until the gate is closed.
type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(ctx context.Context, _ AuditEvent) {
	select {
	case <-s.gate:
	case <-ctx.Done():
	}
}

func TestAuditSinkReceivesLoginEvents(t *testing.T) {
	sink := &captureSink{}
	cfg := DefaultConfig()
	cfg.Warn = func(string, ...any) {}
	manager, err := New().
		WithConfig(cfg).
		WithAuthenticator(newFakeAuthenticator()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	_, _ = manager.Login(ctx, testEmail, "wrong-secret-Aa1!")
	if _, err := manager.Login(ctx, testEmail, testSecret); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	manager.Close()

	events := sink.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}

	failure := events[0]
	if failure.EventType != "login_failure" || failure.Success {
		t.Fatalf("unexpected first event %+v", failure)
	}
	if failure.Error != "invalid_credentials" {
		t.Fatalf("unexpected error code %q", failure.Error)
	}
	if failure.IP != "203.0.113.7" {
		t.Fatalf("unexpected client IP %q", failure.IP)
	}

	success := events[1]
	if success.EventType != "login_success" || !success.Success {
		t.Fatalf("unexpected second event %+v", success)
	}
	if success.Email != testEmail || success.UserID == "" {
		t.Fatalf("success event missing identity: %+v", success)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	sink := &captureSink{}
	cfg := DefaultConfig()
	cfg.Warn = func(string, ...any) {}
	cfg.Audit.Enabled = false

	manager, err := New().
		WithConfig(cfg).
		WithAuthenticator(newFakeAuthenticator()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if _, err := manager.Login(context.Background(), testEmail, testSecret); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	manager.Close()

	if events := sink.snapshot(); len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
}

func TestAuditDroppedCountsBackpressure(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.Warn = func(string, ...any) {}
	cfg.Audit.BufferSize = 1
	cfg.Audit.DropIfFull = true

	manager, err := New().
		WithConfig(cfg).
		WithAuthenticator(newFakeAuthenticator()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(manager.Close)
	t.Cleanup(func() { close(sink.gate) })

	ctx := context.Background()
	for i := 0; i < 8; i++ {
		_, _ = manager.Login(ctx, testEmail, "wrong-secret-Aa1!")
	}

	if manager.AuditDropped() == 0 {
		t.Fatal("expected dropped events under backpressure")
	}
}
