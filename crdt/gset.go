package crdt

import (
	"cmp"
	"sort"
	"sync"

	"github.com/nodestate/crdtkit/internal/codec"
)

// GSet is a grow-only set CRDT: elements can be inserted but never
// removed. Merge is set union, which is trivially commutative,
// associative, and idempotent.
type GSet[T cmp.Ordered] struct {
	mu       sync.RWMutex
	elements map[T]struct{}
}

// NewGSet creates an empty GSet.
func NewGSet[T cmp.Ordered]() *GSet[T] {
	return &GSet[T]{elements: make(map[T]struct{})}
}

// Insert adds x to the set.
func (s *GSet[T]) Insert(x T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements[x] = struct{}{}
}

// Contains reports whether x is in the set.
func (s *GSet[T]) Contains(x T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.elements[x]
	return ok
}

// Value returns the set's elements, sorted for deterministic iteration.
func (s *GSet[T]) Value() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeysLocked(s.elements)
}

// Merge unions other's elements into this set.
func (s *GSet[T]) Merge(other *GSet[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	for x := range other.elements {
		s.elements[x] = struct{}{}
	}
}

func sortedKeysLocked[T cmp.Ordered](m map[T]struct{}) []T {
	out := make([]T, 0, len(m))
	for x := range m {
		out = append(out, x)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type gsetSnapshot[T cmp.Ordered] struct {
	Elements []T
}

// MarshalCRDT encodes the set's elements for envelope storage.
func (s *GSet[T]) MarshalCRDT() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return codec.Marshal(gsetSnapshot[T]{Elements: sortedKeysLocked(s.elements)})
}

// UnmarshalCRDT replaces this set's elements with the decoded snapshot.
func (s *GSet[T]) UnmarshalCRDT(b []byte) error {
	var snap gsetSnapshot[T]
	if err := codec.Unmarshal(b, &snap); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = make(map[T]struct{}, len(snap.Elements))
	for _, x := range snap.Elements {
		s.elements[x] = struct{}{}
	}
	return nil
}
