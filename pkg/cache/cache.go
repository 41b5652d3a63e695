// Package cache provides a thread-safe in-memory store with per-entry TTL,
// namespaced keys, and lazy expiry (no background goroutine).
package cache

import (
	"errors"
	"sync"
	"time"
)

// Cache namespaces. Some namespaces carry a secondary key (e.g. the filtered
// dashboard is keyed by its date window), others use the empty sub-key.
const (
	NSDashboard         = "dashboard_metrics"
	NSDashboardFiltered = "dashboard_metrics_filtered"
	NSRanking           = "technician_ranking"
	NSTechnicianMetrics = "technician_metrics"
	NSFieldIDs          = "field_ids"
	NSUserNames         = "user_names"
	NSPriorityNames     = "priority_names"
	NSCategoryNames     = "category_names"
	NSTechFieldID       = "tech_field_id"
)

// ErrInvalidKey is returned by Set for an empty namespace or non-positive TTL.
var ErrInvalidKey = errors.New("cache: namespace must be non-empty and ttl positive")

type entry struct {
	value      any
	insertedAt time.Time
	ttl        time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) >= e.ttl
}

// Store is a namespaced TTL cache. One RWMutex guards the whole structure;
// no caller code runs while it is held.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewStore creates an empty cache store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

func key(ns, sub string) string {
	return ns + "\x00" + sub
}

// Get returns the value stored under (ns, sub) if present and not expired.
// Expired entries are deleted lazily here.
func (s *Store) Get(ns, sub string) (any, bool) {
	k := key(ns, sub)

	s.mu.RLock()
	e, ok := s.entries[k]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if e.expired(time.Now()) {
		// Re-check under write lock: a concurrent Set may have replaced
		// the entry with a fresh one between RUnlock and Lock.
		s.mu.Lock()
		if current, ok := s.entries[k]; ok && current.expired(time.Now()) {
			delete(s.entries, k)
		}
		s.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

// Set stores value under (ns, sub) with the given TTL, resetting the
// insertion timestamp. Overwrites any previous entry.
func (s *Store) Set(ns, sub string, value any, ttl time.Duration) error {
	if ns == "" || ttl <= 0 {
		return ErrInvalidKey
	}
	s.mu.Lock()
	s.entries[key(ns, sub)] = &entry{value: value, insertedAt: time.Now(), ttl: ttl}
	s.mu.Unlock()
	return nil
}

// Invalidate removes the entry under (ns, sub) if present.
func (s *Store) Invalidate(ns, sub string) {
	s.mu.Lock()
	delete(s.entries, key(ns, sub))
	s.mu.Unlock()
}

// Len returns the number of live and expired-but-not-yet-collected entries.
// Used by the health endpoint.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Typed fetches (ns, sub) and asserts the stored value to T. A type mismatch
// means the entry is corrupt: it is dropped and treated as a miss.
func Typed[T any](s *Store, ns, sub string) (T, bool) {
	var zero T
	v, ok := s.Get(ns, sub)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		s.Invalidate(ns, sub)
		return zero, false
	}
	return t, true
}
