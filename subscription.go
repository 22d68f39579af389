package authgate

import "sync"

// SessionListener receives ordered session-change notifications. identity
// is nil after logout or a failed refresh. Listeners must not call back
// into the [Manager]; doing so deadlocks the notification path.
type SessionListener func(identity *Identity, authenticated bool)

type subscriber struct {
	id uint64
	fn SessionListener
}

// subscribers delivers notifications in registration order. notifyMu is
// held for the whole delivery so two state changes cannot interleave
// their callbacks.
type subscribers struct {
	mu      sync.Mutex
	next    uint64
	ordered []subscriber
}

func (s *subscribers) add(fn SessionListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	id := s.next
	s.ordered = append(s.ordered, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.ordered {
			if sub.id == id {
				s.ordered = append(s.ordered[:i], s.ordered[i+1:]...)
				return
			}
		}
	}
}

func (s *subscribers) snapshot() []subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]subscriber(nil), s.ordered...)
}
