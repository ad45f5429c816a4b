package crdt

import "github.com/nodestate/crdtkit/internal/codec"

// PNCounter is a Positive-Negative Counter CRDT: a counter that supports
// both increment and decrement while remaining a join-semilattice.
//
// It holds two independent G-Counters: P accumulates increments, N
// accumulates decrements. Unlike a naive signed counter, the underlying
// state is still monotonically growing in both components, which is
// what makes merge well-defined.
type PNCounter struct {
	p *GCounter // increments
	n *GCounter // decrements
}

// NewPNCounter creates a PNCounter for the given actor.
func NewPNCounter(actor string) *PNCounter {
	return &PNCounter{p: NewGCounter(actor), n: NewGCounter(actor)}
}

// IncrementBy adds n to the counter.
func (c *PNCounter) IncrementBy(n uint64) {
	c.p.IncrementBy(n)
}

// DecrementBy subtracts n from the counter.
func (c *PNCounter) DecrementBy(n uint64) {
	c.n.IncrementBy(n)
}

// Value returns P.Value() - N.Value() as a signed total.
func (c *PNCounter) Value() int64 {
	return int64(c.p.Value()) - int64(c.n.Value())
}

// Merge merges the P and N components independently.
func (c *PNCounter) Merge(other *PNCounter) {
	c.p.Merge(other.p)
	c.n.Merge(other.n)
}

// Delta returns the component-wise delta against other.
func (c *PNCounter) Delta(other *PNCounter) *PNCounter {
	return &PNCounter{p: c.p.Delta(other.p), n: c.n.Delta(other.n)}
}

// ApplyDelta folds a delta produced by Delta into this counter.
func (c *PNCounter) ApplyDelta(d *PNCounter) {
	c.p.ApplyDelta(d.p)
	c.n.ApplyDelta(d.n)
}

type pncounterSnapshot struct {
	P gcounterSnapshot
	N gcounterSnapshot
}

// MarshalCRDT encodes both components for envelope storage.
func (c *PNCounter) MarshalCRDT() ([]byte, error) {
	c.p.mu.RLock()
	c.n.mu.RLock()
	snap := pncounterSnapshot{
		P: gcounterSnapshot{Actor: c.p.actor, Counts: c.p.counts},
		N: gcounterSnapshot{Actor: c.n.actor, Counts: c.n.counts},
	}
	c.n.mu.RUnlock()
	c.p.mu.RUnlock()
	return codec.Marshal(snap)
}

// UnmarshalCRDT replaces this counter's state with the decoded snapshot.
func (c *PNCounter) UnmarshalCRDT(b []byte) error {
	var snap pncounterSnapshot
	if err := codec.Unmarshal(b, &snap); err != nil {
		return err
	}
	c.p = &GCounter{actor: snap.P.Actor, counts: snap.P.Counts}
	c.n = &GCounter{actor: snap.N.Actor, counts: snap.N.Counts}
	if c.p.counts == nil {
		c.p.counts = make(map[string]uint64)
	}
	if c.n.counts == nil {
		c.n.counts = make(map[string]uint64)
	}
	return nil
}
