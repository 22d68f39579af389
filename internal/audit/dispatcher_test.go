package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := &recordingSink{}
	dispatcher := NewDispatcher(DispatcherConfig{BufferSize: 16}, sink)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		dispatcher.Emit(ctx, Event{EventType: "login_success"})
	}
	dispatcher.Close()

	if got := sink.count(); got != 10 {
		t.Fatalf("expected 10 delivered events, got %d", got)
	}
}

func TestDispatcherEmitAfterCloseIsNoOp(t *testing.T) {
	sink := &recordingSink{}
	dispatcher := NewDispatcher(DispatcherConfig{BufferSize: 4}, sink)
	dispatcher.Close()

	dispatcher.Emit(context.Background(), Event{EventType: "logout"})
	if got := sink.count(); got != 0 {
		t.Fatalf("expected no deliveries after close, got %d", got)
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	gate := make(chan struct{})
	blocking := sinkFunc(func(context.Context, Event) {
		<-gate
	})
	dispatcher := NewDispatcher(DispatcherConfig{BufferSize: 1, DropIfFull: true}, blocking)

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		dispatcher.Emit(ctx, Event{EventType: "login_failure"})
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer")
	}

	close(gate)
	dispatcher.Close()
}

func TestDispatcherBlockingEmitHonorsContext(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	started := make(chan struct{}, 4)
	blocking := sinkFunc(func(context.Context, Event) {
		started <- struct{}{}
		<-gate
	})
	dispatcher := NewDispatcher(DispatcherConfig{BufferSize: 1}, blocking)

	// Fill the pipeline: one event in flight, one queued.
	dispatcher.Emit(context.Background(), Event{})
	<-started
	dispatcher.Emit(context.Background(), Event{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(ctx, Event{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit did not return after context cancellation")
	}
}

func TestDispatcherNilSinkFallsBack(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherConfig{BufferSize: 2}, nil)
	dispatcher.Emit(context.Background(), Event{EventType: "logout"})
	dispatcher.Close()
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		EventType: "login_success",
		UserID:    "u-1",
		Success:   true,
	})
	sink.Emit(context.Background(), Event{
		EventType: "logout",
	})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var first Event
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if first.EventType != "login_success" || first.UserID != "u-1" || !first.Success {
		t.Fatalf("unexpected decoded event %+v", first)
	}
}

type sinkFunc func(context.Context, Event)

func (f sinkFunc) Emit(ctx context.Context, event Event) {
	f(ctx, event)
}
