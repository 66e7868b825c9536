package nonce

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
}

type MemoryOptionFunc func(*memoryStore)

func WithClock(now func() time.Time) MemoryOptionFunc {
	return func(s *memoryStore) {
		s.now = now
	}
}

// NewMemoryStore keeps nonces in process memory. Expired entries are purged lazily on Verify.
func NewMemoryStore(ttl time.Duration, opts ...MemoryOptionFunc) Store {
	s := &memoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *memoryStore) Issue(_ context.Context, deviceID string) (Entry, error) {
	value, err := generate()
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{Nonce: value, ExpiresAt: s.now().Add(s.ttl)}

	s.mu.Lock()
	s.entries[deviceID] = entry
	s.mu.Unlock()

	issuedMetric.Inc()
	return entry, nil
}

func (s *memoryStore) Verify(_ context.Context, deviceID, nonce string) bool {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gc(now)
	entry, ok := s.entries[deviceID]
	switch {
	case !ok:
		verifyMetric.WithLabelValues("missing").Inc()
		return false
	case entry.ExpiresAt.Before(now):
		delete(s.entries, deviceID)
		verifyMetric.WithLabelValues("expired").Inc()
		return false
	case entry.Nonce != nonce:
		verifyMetric.WithLabelValues("mismatch").Inc()
		return false
	}
	delete(s.entries, deviceID)
	verifyMetric.WithLabelValues("ok").Inc()
	return true
}

func (s *memoryStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}

func (s *memoryStore) gc(now time.Time) {
	for deviceID, entry := range s.entries {
		if entry.ExpiresAt.Before(now) {
			delete(s.entries, deviceID)
		}
	}
}

func (s *memoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
