// Package storedb composes the envelope, migration, and storage layers
// into a single versioned database facade (C7): save/load CRDT state
// through a namespaced key/value store, migrating stored bytes forward
// transparently when their schema version is behind the running code's.
package storedb

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nodestate/crdtkit/envelope"
	"github.com/nodestate/crdtkit/migrate"
	"github.com/nodestate/crdtkit/storage"
)

// DefaultNamespace is used by the SaveDefault/LoadDefault convenience
// methods when the application has no need for more than one namespace.
const DefaultNamespace = "default"

// Versioned is satisfied by any CRDT value this facade can save and
// load: it can export and re-import its own serialized state. Every
// concrete type in the crdt package (via pointer receiver) implements
// this already.
type Versioned interface {
	MarshalCRDT() ([]byte, error)
	UnmarshalCRDT([]byte) error
}

// StorageError wraps a failure returned by the backing storage.Backend,
// distinguishing it from serialization, envelope, and migration failures
// per §7's error taxonomy.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storedb: storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// SerializeError wraps a failure from a Versioned value's own
// Marshal/UnmarshalCRDT.
type SerializeError struct {
	Op  string
	Err error
}

func (e *SerializeError) Error() string { return fmt.Sprintf("storedb: %s: %v", e.Op, e.Err) }
func (e *SerializeError) Unwrap() error { return e.Err }

// EnvelopeError wraps a failure from envelope.Decode.
type EnvelopeError struct{ Err error }

func (e *EnvelopeError) Error() string { return fmt.Sprintf("storedb: envelope: %v", e.Err) }
func (e *EnvelopeError) Unwrap() error { return e.Err }

// MigrationError wraps a failure from the migration engine. The facade
// aborts the read on this error; no partial write-back occurs.
type MigrationError struct{ Err error }

func (e *MigrationError) Error() string { return fmt.Sprintf("storedb: migration: %v", e.Err) }
func (e *MigrationError) Unwrap() error { return e.Err }

// ErrNotFound is returned by Load/LoadDefault (and Inspect) when the key
// does not exist.
var ErrNotFound = fmt.Errorf("storedb: key not found")

// DB is the versioned database facade: it composes a storage.Backend
// with an optional migrate.Chain. Save wraps a serialized CRDT value in
// a versioned envelope; Load decodes the envelope and, if the stored
// schema version is behind the code's, runs it through the migration
// chain before deserializing.
type DB struct {
	backend         storage.Backend
	chain           *migrate.Chain
	logger          *zap.Logger
	writeBackOnRead bool
}

// Option configures a DB at construction, the same functional-options
// shape zap.Option uses.
type Option func(*DB)

// WithLogger sets the logger used for best-effort diagnostics (a Warn on
// migration write-back failure, an Info summary from Compact). Other
// backend errors are returned to the caller, not logged. A nil logger is replaced with a
// no-op logger so callers never need to guard against it.
func WithLogger(logger *zap.Logger) Option {
	return func(db *DB) {
		if logger == nil {
			logger = zap.NewNop()
		}
		db.logger = logger
	}
}

// WithWriteBackOnRead enables re-encoding a migrated payload at its new
// version and writing it back to the backend immediately after a
// successful migration, so subsequent reads skip the migration step.
func WithWriteBackOnRead(enabled bool) Option {
	return func(db *DB) { db.writeBackOnRead = enabled }
}

// WithMigrationEngine attaches the chain Load uses to bring payloads
// forward to a type's current schema version. Without one, Load fails
// whenever it encounters an envelope whose version does not match the
// version the caller asks for.
func WithMigrationEngine(chain *migrate.Chain) Option {
	return func(db *DB) { db.chain = chain }
}

// NewDB creates a facade over backend.
func NewDB(backend storage.Backend, opts ...Option) *DB {
	db := &DB{backend: backend, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Save serializes value and writes it to the backend under (ns, key),
// framed in a versioned envelope tagged Custom at the given schema
// version.
func (db *DB) Save(ctx context.Context, ns, key string, value Versioned, version uint8) error {
	payload, err := value.MarshalCRDT()
	if err != nil {
		return &SerializeError{Op: "marshal", Err: err}
	}
	buf := envelope.Encode(version, envelope.Custom, payload)
	if err := db.backend.Put(ctx, ns, key, buf); err != nil {
		return &StorageError{Op: "put", Err: err}
	}
	return nil
}

// SaveDefault is Save under DefaultNamespace.
func (db *DB) SaveDefault(ctx context.Context, key string, value Versioned, version uint8) error {
	return db.Save(ctx, DefaultNamespace, key, value, version)
}

// Load reads (ns, key), migrates the payload to version if its stored
// envelope carries an older one, and deserializes it into out. If the
// stored bytes carry no envelope magic they are treated as opaque
// payload already at version; no migration is attempted in that case.
// Migration fails with a MigrationError if the configured chain's current
// version is not version. If WithWriteBackOnRead was set and a migration ran, the
// migrated bytes are written back under the new version; a failure to do
// so is logged and swallowed, since the in-memory value returned here is
// already correct and the next Load will simply retry the migration.
func (db *DB) Load(ctx context.Context, ns, key string, version uint8, out Versioned) error {
	raw, ok, err := db.backend.Get(ctx, ns, key)
	if err != nil {
		return &StorageError{Op: "get", Err: err}
	}
	if !ok {
		return ErrNotFound
	}

	if !envelope.IsEnvelope(raw) {
		if err := out.UnmarshalCRDT(raw); err != nil {
			return &SerializeError{Op: "unmarshal", Err: err}
		}
		return nil
	}

	storedVersion, _, payload, err := envelope.Decode(raw)
	if err != nil {
		return &EnvelopeError{Err: err}
	}

	if storedVersion != version {
		if db.chain == nil {
			return &MigrationError{Err: fmt.Errorf("no migration engine configured: stored version %d, want %d", storedVersion, version)}
		}
		if db.chain.CurrentVersion() != version {
			return &MigrationError{Err: fmt.Errorf("migration chain targets version %d, want %d", db.chain.CurrentVersion(), version)}
		}
		migrated, err := db.chain.MigrateToCurrent(payload, storedVersion)
		if err != nil {
			return &MigrationError{Err: err}
		}
		payload = migrated

		if db.writeBackOnRead {
			buf := envelope.Encode(version, envelope.Custom, payload)
			if err := db.backend.Put(ctx, ns, key, buf); err != nil {
				db.logger.Warn("storedb: migration write-back failed, will retry on next read",
					zap.String("namespace", ns), zap.String("key", key), zap.Error(err))
			}
		}
	}

	if err := out.UnmarshalCRDT(payload); err != nil {
		return &SerializeError{Op: "unmarshal", Err: err}
	}
	return nil
}

// LoadDefault is Load under DefaultNamespace.
func (db *DB) LoadDefault(ctx context.Context, key string, version uint8, out Versioned) error {
	return db.Load(ctx, DefaultNamespace, key, version, out)
}

// Delete removes (ns, key) from the backend.
func (db *DB) Delete(ctx context.Context, ns, key string) error {
	if err := db.backend.Delete(ctx, ns, key); err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	return nil
}

// ListKeys lists every key stored under ns.
func (db *DB) ListKeys(ctx context.Context, ns string) ([]string, error) {
	keys, err := db.backend.ListKeys(ctx, ns)
	if err != nil {
		return nil, &StorageError{Op: "list_keys", Err: err}
	}
	return keys, nil
}

// Exists reports whether (ns, key) has a stored value.
func (db *DB) Exists(ctx context.Context, ns, key string) (bool, error) {
	ok, err := db.backend.Exists(ctx, ns, key)
	if err != nil {
		return false, &StorageError{Op: "exists", Err: err}
	}
	return ok, nil
}

// Backend returns the underlying storage backend, for callers that need
// direct access to the event-sourcing operations in this package or to
// an optional capability like storage.Transactor.
func (db *DB) Backend() storage.Backend { return db.backend }
