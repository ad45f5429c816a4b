package crdt

import (
	"cmp"
	"sync"

	"github.com/nodestate/crdtkit/internal/codec"
)

// TwoPSet is a two-phase set CRDT: union of an "added" GSet and a
// "removed" GSet, with membership = added \ removed. Once any replica
// observes an element in removed, no later merge can restore it: removal
// is permanent.
type TwoPSet[T cmp.Ordered] struct {
	mu      sync.RWMutex
	added   *GSet[T]
	removed *GSet[T]
}

// NewTwoPSet creates an empty TwoPSet.
func NewTwoPSet[T cmp.Ordered]() *TwoPSet[T] {
	return &TwoPSet[T]{added: NewGSet[T](), removed: NewGSet[T]()}
}

// Insert adds x to the set, unless it has already been removed.
func (s *TwoPSet[T]) Insert(x T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added.Insert(x)
}

// Remove marks x as removed. It is a no-op if x was never added.
func (s *TwoPSet[T]) Remove(x T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.added.Contains(x) {
		return
	}
	s.removed.Insert(x)
}

// Contains reports whether x is present and not removed.
func (s *TwoPSet[T]) Contains(x T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.added.Contains(x) && !s.removed.Contains(x)
}

// Value returns the live elements, sorted.
func (s *TwoPSet[T]) Value() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0)
	for _, x := range s.added.Value() {
		if !s.removed.Contains(x) {
			out = append(out, x)
		}
	}
	return out
}

// Merge unions both the added and removed component sets.
func (s *TwoPSet[T]) Merge(other *TwoPSet[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added.Merge(other.added)
	s.removed.Merge(other.removed)
}

type twopsetSnapshot[T cmp.Ordered] struct {
	Added   []T
	Removed []T
}

// MarshalCRDT encodes both component sets for envelope storage.
func (s *TwoPSet[T]) MarshalCRDT() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return codec.Marshal(twopsetSnapshot[T]{
		Added:   s.added.Value(),
		Removed: s.removed.Value(),
	})
}

// UnmarshalCRDT replaces this set's state with the decoded snapshot.
func (s *TwoPSet[T]) UnmarshalCRDT(b []byte) error {
	var snap twopsetSnapshot[T]
	if err := codec.Unmarshal(b, &snap); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = NewGSet[T]()
	s.removed = NewGSet[T]()
	for _, x := range snap.Added {
		s.added.Insert(x)
	}
	for _, x := range snap.Removed {
		s.removed.Insert(x)
	}
	return nil
}
