package storage

import (
	"context"
	"sort"
	"sync"
)

// nsKey is the composite key for the state store's map.
type nsKey struct{ namespace, key string }

// entityKey is the composite key for the event and snapshot stores.
type entityKey struct{ namespace, entityID string }

// MemoryBackend is the reference in-memory Backend (C6): all three stores
// live in Go maps guarded by a single mutex; ListKeys sorts its result and
// each entity's events are kept in append (ascending sequence) order. It uses one
// global monotonic sequence counter shared across every entity rather
// than one counter per entity: it satisfies the same strictly-increasing
// guarantee and is simpler to implement correctly.
type MemoryBackend struct {
	mu      sync.Mutex
	state   map[nsKey][]byte
	events  map[entityKey][]StoredEvent
	snaps   map[entityKey]Snapshot
	nextSeq uint64
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		state:   make(map[nsKey][]byte),
		events:  make(map[entityKey][]StoredEvent),
		snaps:   make(map[entityKey]Snapshot),
		nextSeq: 1,
	}
}

func (m *MemoryBackend) Put(_ context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.state[nsKey{namespace, key}] = cp
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.state[nsKey{namespace, key}]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (m *MemoryBackend) Delete(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, nsKey{namespace, key})
	return nil
}

func (m *MemoryBackend) ListKeys(_ context.Context, namespace string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.state {
		if k.namespace == namespace {
			keys = append(keys, k.key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryBackend) Exists(_ context.Context, namespace, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.state[nsKey{namespace, key}]
	return ok, nil
}

func (m *MemoryBackend) AppendEvent(_ context.Context, namespace, entityID string, payload []byte, timestamp uint64, nodeID string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq := m.nextSeq
	m.nextSeq++

	cp := make([]byte, len(payload))
	copy(cp, payload)

	ek := entityKey{namespace, entityID}
	m.events[ek] = append(m.events[ek], StoredEvent{
		Sequence:  seq,
		Namespace: namespace,
		EntityID:  entityID,
		Payload:   cp,
		Timestamp: timestamp,
		NodeID:    nodeID,
	})
	return seq, nil
}

func (m *MemoryBackend) EventsSince(_ context.Context, namespace, entityID string, since uint64) ([]StoredEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.events[entityKey{namespace, entityID}]
	out := make([]StoredEvent, 0, len(all))
	for _, e := range all {
		if e.Sequence > since {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryBackend) EventCount(_ context.Context, namespace, entityID string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.events[entityKey{namespace, entityID}])), nil
}

func (m *MemoryBackend) TruncateEventsBefore(_ context.Context, namespace, entityID string, before uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ek := entityKey{namespace, entityID}
	all := m.events[ek]
	kept := all[:0:0]
	var removed uint64
	for _, e := range all {
		if e.Sequence < before {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.events[ek] = kept
	return removed, nil
}

func (m *MemoryBackend) SaveSnapshot(_ context.Context, namespace, entityID string, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(s.Payload))
	copy(cp, s.Payload)
	s.Payload = cp
	m.snaps[entityKey{namespace, entityID}] = s
	return nil
}

func (m *MemoryBackend) LoadSnapshot(_ context.Context, namespace, entityID string) (Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[entityKey{namespace, entityID}]
	return s, ok, nil
}

// Transaction runs f directly: every Backend method f calls back into
// already serializes itself against concurrent callers through m.mu, so
// nothing here needs to hold the lock across the call (doing so would
// deadlock against f's own calls back into Put/Get/AppendEvent/etc.,
// since m.mu is not reentrant). There is no rollback: f's operations
// commit as they run, matching the reference backend's "never actually
// fails" character, a real transactional backend (SQL/KV) would roll
// back on error instead.
func (m *MemoryBackend) Transaction(ctx context.Context, f func(ctx context.Context) error) error {
	return f(ctx)
}

// PutBatch writes every entry in one locked pass.
func (m *MemoryBackend) PutBatch(_ context.Context, namespace string, entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, value := range entries {
		cp := make([]byte, len(value))
		copy(cp, value)
		m.state[nsKey{namespace, key}] = cp
	}
	return nil
}

var (
	_ Backend     = (*MemoryBackend)(nil)
	_ Transactor  = (*MemoryBackend)(nil)
	_ BatchPutter = (*MemoryBackend)(nil)
)
