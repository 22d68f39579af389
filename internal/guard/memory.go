package guard

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	mu       sync.Mutex
	attempts []time.Time
}

// Memory is the zero-dependency in-process guard backend. Each record
// owns a mutex, so prune-then-count and prune-then-append are atomic per
// key while distinct identities never contend.
type Memory struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	records map[string]*memoryRecord
}

// NewMemory creates an in-memory guard store.
func NewMemory(cfg Config) *Memory {
	return &Memory{
		cfg:     cfg,
		now:     time.Now,
		records: make(map[string]*memoryRecord),
	}
}

func (m *Memory) record(key string) *memoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		rec = &memoryRecord{}
		m.records[key] = rec
	}
	return rec
}

func (m *Memory) prune(rec *memoryRecord, now time.Time) {
	cutoff := now.Add(-m.cfg.Window)
	kept := rec.attempts[:0]
	for _, at := range rec.attempts {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	rec.attempts = kept
}

// CheckAllowed implements [Store].
func (m *Memory) CheckAllowed(_ context.Context, identity, action string) (bool, error) {
	rec := m.record(Key(identity, action))

	rec.mu.Lock()
	defer rec.mu.Unlock()

	m.prune(rec, m.now())
	return len(rec.attempts) < m.cfg.MaxAttempts, nil
}

// RecordFailure implements [Store].
func (m *Memory) RecordFailure(_ context.Context, identity, action string) error {
	rec := m.record(Key(identity, action))

	rec.mu.Lock()
	defer rec.mu.Unlock()

	now := m.now()
	m.prune(rec, now)
	rec.attempts = append(rec.attempts, now)
	return nil
}

// Clear implements [Store].
func (m *Memory) Clear(_ context.Context, identity, action string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, Key(identity, action))
	return nil
}
