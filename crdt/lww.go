package crdt

import (
	"cmp"
	"sync"

	"github.com/nodestate/crdtkit/internal/codec"
)

// LWWRegister is a Last-Writer-Wins register CRDT. Concurrent writes are
// resolved by comparing (timestamp, actor) lexicographically; both sides
// of a merge must use the same total order for the register to converge.
type LWWRegister[T cmp.Ordered] struct {
	mu    sync.RWMutex
	actor string
	value T
	ts    uint64
}

// NewLWWRegister creates a register for the given actor with a zero
// value and a timestamp of 0.
func NewLWWRegister[T cmp.Ordered](actor string) *LWWRegister[T] {
	return &LWWRegister[T]{actor: actor}
}

// SetWithTimestamp replaces the register's value iff ts is greater than
// or equal to the register's current timestamp.
func (r *LWWRegister[T]) SetWithTimestamp(value T, ts uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ts >= r.ts {
		r.value = value
		r.ts = ts
	}
}

// Value returns the current value.
func (r *LWWRegister[T]) Value() T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

// Timestamp returns the timestamp of the current value.
func (r *LWWRegister[T]) Timestamp() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ts
}

// wins reports whether (ts, actor) strictly outranks (otherTs, otherActor)
// under the register's total order: timestamp first, actor as tie-break.
func wins(ts uint64, actor string, otherTs uint64, otherActor string) bool {
	if ts != otherTs {
		return ts > otherTs
	}
	return actor > otherActor
}

// Merge replaces this register's value with other's iff other's
// (timestamp, actor) strictly outranks this register's.
func (r *LWWRegister[T]) Merge(other *LWWRegister[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	if wins(other.ts, other.actor, r.ts, r.actor) {
		r.value = other.value
		r.ts = other.ts
		r.actor = other.actor
	}
}

type lwwSnapshot[T cmp.Ordered] struct {
	Actor string
	Value T
	Ts    uint64
}

// MarshalCRDT encodes the register's state for envelope storage.
func (r *LWWRegister[T]) MarshalCRDT() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return codec.Marshal(lwwSnapshot[T]{Actor: r.actor, Value: r.value, Ts: r.ts})
}

// UnmarshalCRDT replaces this register's state with the decoded snapshot.
func (r *LWWRegister[T]) UnmarshalCRDT(b []byte) error {
	var snap lwwSnapshot[T]
	if err := codec.Unmarshal(b, &snap); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actor, r.value, r.ts = snap.Actor, snap.Value, snap.Ts
	return nil
}
