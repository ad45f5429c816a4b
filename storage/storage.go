// Package storage defines the persistence abstraction every CRDT backend
// satisfies: a state store keyed by (namespace, key), an append-only
// per-entity event log with strictly increasing sequence numbers, and a
// one-per-entity snapshot store. The envelope, migration, and facade
// layers above this package never see a concrete backend type, they hold
// a Backend and borrow it through these interfaces.
package storage

import "context"

// StoredEvent is one entry in an entity's append-only event log.
type StoredEvent struct {
	Sequence  uint64
	Namespace string
	EntityID  string
	Payload   []byte
	Timestamp uint64
	NodeID    string
}

// Snapshot is a saved serialized state at a specific event sequence,
// used to shortcut replay. At most one exists per (namespace, entity).
type Snapshot struct {
	Payload    []byte
	AtSequence uint64
	Version    uint8
}

// StateStore is the key/value half of a backend: opaque bytes keyed by
// (namespace, key).
type StateStore interface {
	Put(ctx context.Context, namespace, key string, value []byte) error
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Delete(ctx context.Context, namespace, key string) error
	ListKeys(ctx context.Context, namespace string) ([]string, error)
	Exists(ctx context.Context, namespace, key string) (bool, error)
}

// EventStore is the append-only event log half of a backend, keyed by
// (namespace, entity_id). Concurrent appenders to the same entity must be
// serialized by the implementation so sequence assignment is race-free.
type EventStore interface {
	AppendEvent(ctx context.Context, namespace, entityID string, payload []byte, timestamp uint64, nodeID string) (uint64, error)
	EventsSince(ctx context.Context, namespace, entityID string, since uint64) ([]StoredEvent, error)
	EventCount(ctx context.Context, namespace, entityID string) (uint64, error)
	TruncateEventsBefore(ctx context.Context, namespace, entityID string, before uint64) (uint64, error)
}

// SnapshotStore is the one-per-entity snapshot half of a backend.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, namespace, entityID string, s Snapshot) error
	LoadSnapshot(ctx context.Context, namespace, entityID string) (Snapshot, bool, error)
}

// Backend is the full C5 contract a concrete storage implementation
// satisfies. The reference in-memory backend (MemoryBackend) and any
// SQL/KV backend an application supplies both implement this.
type Backend interface {
	StateStore
	EventStore
	SnapshotStore
}

// Transactor is an optional capability: a backend that can run a group of
// operations atomically. Backends that cannot support it simply do not
// implement this interface; callers type-assert for it.
type Transactor interface {
	Transaction(ctx context.Context, f func(ctx context.Context) error) error
}

// BatchPutter is an optional capability: a backend that can write several
// state entries in one call, atomically where the backend supports it.
type BatchPutter interface {
	PutBatch(ctx context.Context, namespace string, entries map[string][]byte) error
}

// Error wraps a backend-specific failure with the backend's identity and
// the (namespace, key/entity) context the operation was attempted under,
// satisfying §7's "storage errors are passed through with backend
// identity and context" requirement.
type Error struct {
	Backend   string
	Namespace string
	Key       string
	Op        string
	Err       error
}

func (e *Error) Error() string {
	return e.Backend + ": " + e.Op + " (" + e.Namespace + "/" + e.Key + "): " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
