// Package cache holds the in-memory caches owned by the coordinator: raw
// manifest content with a TTL and parsed master manifests without one.
package cache

import (
	"sync"
	"time"

	"github.com/mohaanymo/veldscan/internal/models"
)

// DefaultContentTTL is how long fetched manifest bytes are reused.
const DefaultContentTTL = 60 * time.Second

type entry[V any] struct {
	value   V
	expires time.Time // zero means never
}

// Table is a concurrency-safe map with optional per-table expiry.
type Table[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry[V]
}

// NewTable creates a table. ttl <= 0 disables expiry.
func NewTable[V any](ttl time.Duration) *Table[V] {
	return &Table[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the live value for key.
func (t *Table[V]) Get(key string) (V, bool) {
	t.mu.RLock()
	e, ok := t.entries[key]
	t.mu.RUnlock()

	if !ok || t.expired(e) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, replacing any previous entry.
func (t *Table[V]) Put(key string, value V) {
	e := entry[V]{value: value}
	if t.ttl > 0 {
		e.expires = t.now().Add(t.ttl)
	}
	t.mu.Lock()
	t.entries[key] = e
	t.mu.Unlock()
}

// Delete removes key.
func (t *Table[V]) Delete(key string) {
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
}

// EvictExpired removes expired entries and returns how many were dropped.
func (t *Table[V]) EvictExpired() int {
	if t.ttl <= 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, e := range t.entries {
		if t.expired(e) {
			delete(t.entries, k)
			n++
		}
	}
	return n
}

// Clear removes every entry.
func (t *Table[V]) Clear() {
	t.mu.Lock()
	t.entries = make(map[string]entry[V])
	t.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (t *Table[V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Range calls fn for each live entry until fn returns false. fn must not
// modify the table.
func (t *Table[V]) Range(fn func(key string, value V) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for k, e := range t.entries {
		if t.expired(e) {
			continue
		}
		if !fn(k, e.value) {
			return
		}
	}
}

func (t *Table[V]) expired(e entry[V]) bool {
	return !e.expires.IsZero() && !t.now().Before(e.expires)
}

// Store is the cache pair of one coordinator. Keys are normalized URLs.
type Store struct {
	Content *Table[[]byte]
	Masters *Table[*models.Manifest]
}

// NewStore creates a store whose content table expires after contentTTL.
func NewStore(contentTTL time.Duration) *Store {
	if contentTTL <= 0 {
		contentTTL = DefaultContentTTL
	}
	return &Store{
		Content: NewTable[[]byte](contentTTL),
		Masters: NewTable[*models.Manifest](0),
	}
}

// Forget drops key from both tables.
func (s *Store) Forget(key string) {
	s.Content.Delete(key)
	s.Masters.Delete(key)
}

// EvictExpired sweeps the content table.
func (s *Store) EvictExpired() int {
	return s.Content.EvictExpired()
}

// Clear empties both tables.
func (s *Store) Clear() {
	s.Content.Clear()
	s.Masters.Clear()
}

// SetClock replaces the time source of both tables. Used by tests.
func (s *Store) SetClock(now func() time.Time) {
	s.Content.now = now
	s.Masters.now = now
}
