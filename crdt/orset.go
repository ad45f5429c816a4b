package crdt

import (
	"cmp"
	"sort"
	"sync"

	"github.com/nodestate/crdtkit/internal/codec"
)

// Tag uniquely identifies one OR-Set insert: the actor that performed it
// and that actor's local counter value at the time. Invariant 3: every
// tag a given replica ever produces has a strictly greater counter than
// any earlier tag from that same replica.
type Tag struct {
	Actor   string
	Counter uint64
}

func (t Tag) less(o Tag) bool {
	if t.Actor != o.Actor {
		return t.Actor < o.Actor
	}
	return t.Counter < o.Counter
}

// ORSet is an observed-remove set CRDT: add-wins semantics, meaning a
// concurrent insert survives a concurrent remove that never observed its
// tag.
type ORSet[T cmp.Ordered] struct {
	mu         sync.RWMutex
	actor      string
	counter    uint64
	elements   map[T]map[Tag]struct{}
	tombstones map[Tag]struct{}
}

// NewORSet creates an empty OR-Set for the given actor.
func NewORSet[T cmp.Ordered](actor string) *ORSet[T] {
	return &ORSet[T]{
		actor:      actor,
		elements:   make(map[T]map[Tag]struct{}),
		tombstones: make(map[Tag]struct{}),
	}
}

// Insert adds x to the set under a freshly minted, monotonically
// increasing tag.
func (s *ORSet[T]) Insert(x T) Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	tag := Tag{Actor: s.actor, Counter: s.counter}
	if s.elements[x] == nil {
		s.elements[x] = make(map[Tag]struct{})
	}
	s.elements[x][tag] = struct{}{}
	return tag
}

// Remove moves every tag currently under x into the tombstone set and
// drops x from the live elements.
func (s *ORSet[T]) Remove(x T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tag := range s.elements[x] {
		s.tombstones[tag] = struct{}{}
	}
	delete(s.elements, x)
}

// Contains reports whether x has at least one live (non-tombstoned) tag.
func (s *ORSet[T]) Contains(x T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elements[x]) > 0
}

// Value returns the set's live elements, sorted.
func (s *ORSet[T]) Value() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.elements))
	for x := range s.elements {
		out = append(out, x)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Merge folds other's state into this set:
//  1. every tag other holds under x, not already tombstoned here, is
//     added under x;
//  2. every tag other tombstones is removed from every element here;
//  3. tombstone sets are unioned;
//  4. elements left with no tags are dropped;
//  5. the local counter advances to the max of both.
func (s *ORSet[T]) Merge(other *ORSet[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	for x, tags := range other.elements {
		for tag := range tags {
			if _, dead := s.tombstones[tag]; dead {
				continue
			}
			if s.elements[x] == nil {
				s.elements[x] = make(map[Tag]struct{})
			}
			s.elements[x][tag] = struct{}{}
		}
	}

	for tag := range other.tombstones {
		for x, tags := range s.elements {
			delete(tags, tag)
			if len(tags) == 0 {
				delete(s.elements, x)
			}
		}
		s.tombstones[tag] = struct{}{}
	}

	for x, tags := range s.elements {
		if len(tags) == 0 {
			delete(s.elements, x)
		}
	}

	if other.counter > s.counter {
		s.counter = other.counter
	}
}

// Delta is the minimal patch between two OR-Sets: per-element tags that
// other has not yet observed (neither live under x nor tombstoned on
// other's side), plus the tombstones other does not yet have.
type ORSetDelta[T cmp.Ordered] struct {
	Additions  map[T]map[Tag]struct{}
	Tombstones map[Tag]struct{}
}

// Delta computes the minimal patch from this set against other, such
// that other.ApplyDelta(this.Delta(other)) converges to other.Merge(this).
func (s *ORSet[T]) Delta(other *ORSet[T]) *ORSetDelta[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	d := &ORSetDelta[T]{
		Additions:  make(map[T]map[Tag]struct{}),
		Tombstones: make(map[Tag]struct{}),
	}

	for x, tags := range s.elements {
		for tag := range tags {
			if _, tombstoned := other.tombstones[tag]; tombstoned {
				continue
			}
			if otherTags, ok := other.elements[x]; ok {
				if _, present := otherTags[tag]; present {
					continue
				}
			}
			if d.Additions[x] == nil {
				d.Additions[x] = make(map[Tag]struct{})
			}
			d.Additions[x][tag] = struct{}{}
		}
	}

	for tag := range s.tombstones {
		if _, ok := other.tombstones[tag]; !ok {
			d.Tombstones[tag] = struct{}{}
		}
	}

	return d
}

// ApplyDelta folds a delta into this set. Additions are applied first,
// then tombstones, so a tag present in both the additions and tombstones
// of the same delta ends up tombstoned.
func (s *ORSet[T]) ApplyDelta(d *ORSetDelta[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for x, tags := range d.Additions {
		for tag := range tags {
			if _, dead := s.tombstones[tag]; dead {
				continue
			}
			if s.elements[x] == nil {
				s.elements[x] = make(map[Tag]struct{})
			}
			s.elements[x][tag] = struct{}{}
		}
	}

	for tag := range d.Tombstones {
		for x, tags := range s.elements {
			delete(tags, tag)
			if len(tags) == 0 {
				delete(s.elements, x)
			}
		}
		s.tombstones[tag] = struct{}{}
	}
}

type orsetElementSnapshot[T cmp.Ordered] struct {
	Element T
	Tags    []Tag
}

type orsetSnapshot[T cmp.Ordered] struct {
	Actor      string
	Counter    uint64
	Elements   []orsetElementSnapshot[T]
	Tombstones []Tag
}

func sortedTags(tags map[Tag]struct{}) []Tag {
	out := make([]Tag, 0, len(tags))
	for t := range tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

// MarshalCRDT encodes the set's full state (elements, tags, tombstones,
// and counter) for envelope storage.
func (s *ORSet[T]) MarshalCRDT() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := orsetSnapshot[T]{Actor: s.actor, Counter: s.counter, Tombstones: sortedTags(s.tombstones)}
	elements := make([]T, 0, len(s.elements))
	for x := range s.elements {
		elements = append(elements, x)
	}
	sort.Slice(elements, func(i, j int) bool { return elements[i] < elements[j] })
	for _, x := range elements {
		snap.Elements = append(snap.Elements, orsetElementSnapshot[T]{Element: x, Tags: sortedTags(s.elements[x])})
	}
	return codec.Marshal(snap)
}

// UnmarshalCRDT replaces this set's state with the decoded snapshot.
func (s *ORSet[T]) UnmarshalCRDT(b []byte) error {
	var snap orsetSnapshot[T]
	if err := codec.Unmarshal(b, &snap); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actor = snap.Actor
	s.counter = snap.Counter
	s.elements = make(map[T]map[Tag]struct{}, len(snap.Elements))
	for _, es := range snap.Elements {
		tags := make(map[Tag]struct{}, len(es.Tags))
		for _, t := range es.Tags {
			tags[t] = struct{}{}
		}
		s.elements[es.Element] = tags
	}
	s.tombstones = make(map[Tag]struct{}, len(snap.Tombstones))
	for _, t := range snap.Tombstones {
		s.tombstones[t] = struct{}{}
	}
	return nil
}
