package optimistic

import (
	"fmt"
	"sync"
)

// MapStore is an in-memory Store that also counts in-flight changes per key.
type MapStore[K comparable, V any] struct {
	mu       sync.RWMutex
	values   map[K]V
	inflight map[K]int
}

// NewMapStore returns a store seeded with a copy of initial.
func NewMapStore[K comparable, V any](initial map[K]V) *MapStore[K, V] {
	s := &MapStore[K, V]{
		values:   make(map[K]V, len(initial)),
		inflight: make(map[K]int),
	}
	for k, v := range initial {
		s.values[k] = v
	}
	return s
}

// Get returns the value for key.
func (s *MapStore[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Put writes v for key without touching in-flight bookkeeping.
func (s *MapStore[K, V]) Put(key K, v V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = v
}

// Swap implements Store.
func (s *MapStore[K, V]) Swap(key K, fn func(V) V) (V, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prior, ok := s.values[key]
	if !ok {
		var zero V
		return zero, fmt.Errorf("%v: %w", key, ErrUnknownTarget)
	}
	s.values[key] = fn(prior)
	s.inflight[key]++
	return prior, nil
}

// Settle implements Store.
func (s *MapStore[K, V]) Settle(key K, v V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = v
	if s.inflight[key] <= 1 {
		delete(s.inflight, key)
		return
	}
	s.inflight[key]--
}

// InFlight returns the number of unsettled changes for key.
func (s *MapStore[K, V]) InFlight(key K) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight[key]
}

// Snapshot returns a copy of all values.
func (s *MapStore[K, V]) Snapshot() map[K]V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[K]V, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
