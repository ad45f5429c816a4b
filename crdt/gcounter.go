package crdt

import (
	"sync"

	"github.com/nodestate/crdtkit/internal/codec"
)

// GCounter is a state-based Grow-only Counter CRDT.
//
// It is a distributed counter where the value only increases. To prevent
// double-counting across different nodes, it maintains a map of
// actor -> count, where each actor is responsible only for its own slot.
// The total value is the sum of all slots.
type GCounter struct {
	mu     sync.RWMutex
	actor  string
	counts map[string]uint64
}

// NewGCounter creates a GCounter for the given actor. actor must be
// unique across the replicated system so increments from distinct
// replicas land in distinct slots.
func NewGCounter(actor string) *GCounter {
	return &GCounter{actor: actor, counts: make(map[string]uint64)}
}

// IncrementBy adds n to this replica's own slot.
func (c *GCounter) IncrementBy(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[c.actor] += n
}

// Value returns the sum of all slots.
func (c *GCounter) Value() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sumLocked()
}

func (c *GCounter) sumLocked() uint64 {
	var sum uint64
	for _, n := range c.counts {
		sum += n
	}
	return sum
}

// Merge folds other's slots into this counter by taking, per actor, the
// maximum of the two values. This is the join operation: commutative,
// associative, and idempotent.
func (c *GCounter) Merge(other *GCounter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	for actor, n := range other.counts {
		if n > c.counts[actor] {
			c.counts[actor] = n
		}
	}
}

// Delta returns a GCounter containing only the slots where this counter
// is strictly ahead of other, the minimal patch such that
// other.ApplyDelta(this.Delta(other)) converges to this.Merge(other).
func (c *GCounter) Delta(other *GCounter) *GCounter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	d := NewGCounter(c.actor)
	for actor, n := range c.counts {
		if n > other.counts[actor] {
			d.counts[actor] = n
		}
	}
	return d
}

// ApplyDelta folds a delta into this counter. For G-Counter this is
// identical to Merge: deltas carry absolute slot values, not increments.
func (c *GCounter) ApplyDelta(d *GCounter) {
	c.Merge(d)
}

type gcounterSnapshot struct {
	Actor  string
	Counts map[string]uint64
}

// MarshalCRDT encodes the counter's full state for envelope storage.
func (c *GCounter) MarshalCRDT() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return codec.Marshal(gcounterSnapshot{Actor: c.actor, Counts: c.counts})
}

// UnmarshalCRDT replaces this counter's state with the decoded snapshot.
func (c *GCounter) UnmarshalCRDT(b []byte) error {
	var s gcounterSnapshot
	if err := codec.Unmarshal(b, &s); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actor = s.Actor
	c.counts = s.Counts
	if c.counts == nil {
		c.counts = make(map[string]uint64)
	}
	return nil
}
