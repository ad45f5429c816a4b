// Package crdt implements seven Conflict-free Replicated Data Types plus a
// replicated sequence (RGA/Text): grow-only and positive/negative
// counters, grow-only and two-phase sets, an observed-remove set, a
// last-writer-wins register, a multi-value register, and RGA/Text.
//
// Every type here is a state-based CRDT (CvRDT): mutators are local only,
// and Merge is the sole network-facing operation, required to be
// commutative, associative, and idempotent. Types that support delta
// synchronization additionally expose Delta/ApplyDelta so that two
// replicas can exchange a minimal patch instead of full state.
package crdt

// CRDT is a type-erased view of a value for generic tooling (an envelope
// inspector, a dashboard). RGA and Text satisfy it; the counters, sets
// and registers return a concrete type from Value and do not. Merge and
// delta remain statically typed per concrete type, since Go generics
// can't express a uniform Merge signature across distinct instantiations.
type CRDT interface {
	// Value returns the current consolidated state.
	Value() any
}

var (
	_ CRDT = (*RGA[int])(nil)
	_ CRDT = (*Text)(nil)
)
