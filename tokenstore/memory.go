package tokenstore

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process [Store] for tests and single-binary deployments
// that do not need sessions to survive a restart.
type Memory struct {
	mu        sync.Mutex
	sealed    []byte
	expiresAt time.Time

	now func() time.Time
}

// NewMemory creates an empty in-memory [Store].
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) Save(_ context.Context, sealed []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sealed = append([]byte(nil), sealed...)
	if ttl > 0 {
		m.expiresAt = m.now().Add(ttl)
	} else {
		m.expiresAt = time.Time{}
	}
	return nil
}

func (m *Memory) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealed == nil {
		return nil, ErrNoSession
	}
	if !m.expiresAt.IsZero() && !m.now().Before(m.expiresAt) {
		m.sealed = nil
		m.expiresAt = time.Time{}
		return nil, ErrNoSession
	}
	return append([]byte(nil), m.sealed...), nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sealed = nil
	m.expiresAt = time.Time{}
	return nil
}
