package storedb

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nodestate/crdtkit/storage"
)

// Serializer is the minimal shape an event-sourced value needs: it can
// turn itself into bytes for AppendEvent. Every CRDT type in the crdt
// package satisfies it (via pointer receiver) through its MarshalCRDT
// method.
type Serializer interface {
	MarshalCRDT() ([]byte, error)
}

// AppendEvent serializes ev and forwards it to the backend's event log
// for (ns, entityID), returning the assigned sequence number.
func (db *DB) AppendEvent(ctx context.Context, ns, entityID string, ev Serializer, timestamp uint64, nodeID string) (uint64, error) {
	payload, err := ev.MarshalCRDT()
	if err != nil {
		return 0, &SerializeError{Op: "marshal event", Err: err}
	}
	seq, err := db.backend.AppendEvent(ctx, ns, entityID, payload, timestamp, nodeID)
	if err != nil {
		return 0, &StorageError{Op: "append_event", Err: err}
	}
	return seq, nil
}

// EventsSince forwards to the backend; the caller is responsible for
// deserializing each event's payload with the same codec it was
// appended with.
func (db *DB) EventsSince(ctx context.Context, ns, entityID string, since uint64) ([]storage.StoredEvent, error) {
	events, err := db.backend.EventsSince(ctx, ns, entityID, since)
	if err != nil {
		return nil, &StorageError{Op: "events_since", Err: err}
	}
	return events, nil
}

// EventCount forwards to the backend.
func (db *DB) EventCount(ctx context.Context, ns, entityID string) (uint64, error) {
	count, err := db.backend.EventCount(ctx, ns, entityID)
	if err != nil {
		return 0, &StorageError{Op: "event_count", Err: err}
	}
	return count, nil
}

// Compact saves a snapshot of stateBytes at the entity's latest event
// sequence and truncates every event strictly before that sequence,
// keeping the boundary event itself as the anchor a delta sync can
// resume from. If the entity has no events yet, Compact is a no-op that
// returns 0.
func (db *DB) Compact(ctx context.Context, ns, entityID string, stateBytes []byte, schemaVersion uint8) (uint64, error) {
	latest, err := db.backend.EventsSince(ctx, ns, entityID, 0)
	if err != nil {
		return 0, &StorageError{Op: "events_since", Err: err}
	}
	if len(latest) == 0 {
		return 0, nil
	}

	var maxSeq uint64
	for _, e := range latest {
		if e.Sequence > maxSeq {
			maxSeq = e.Sequence
		}
	}

	snap := storage.Snapshot{Payload: stateBytes, AtSequence: maxSeq, Version: schemaVersion}
	if err := db.backend.SaveSnapshot(ctx, ns, entityID, snap); err != nil {
		return 0, &StorageError{Op: "save_snapshot", Err: err}
	}

	removed, err := db.backend.TruncateEventsBefore(ctx, ns, entityID, maxSeq)
	if err != nil {
		return 0, &StorageError{Op: "truncate_events_before", Err: err}
	}

	db.logger.Info("storedb: compacted event log",
		zap.String("namespace", ns), zap.String("entity", entityID),
		zap.Uint64("at_sequence", maxSeq), zap.Uint64("removed", removed))
	return removed, nil
}

// LoadSnapshot forwards to the backend.
func (db *DB) LoadSnapshot(ctx context.Context, ns, entityID string) (storage.Snapshot, bool, error) {
	snap, ok, err := db.backend.LoadSnapshot(ctx, ns, entityID)
	if err != nil {
		return storage.Snapshot{}, false, &StorageError{Op: "load_snapshot", Err: err}
	}
	return snap, ok, nil
}

// SnapshotPolicy is an application-tunable threshold on an entity's event
// count, above which Compact is recommended. It does not trigger
// compaction itself; callers check ShouldCompact after AppendEvent and
// decide whether to call Compact.
type SnapshotPolicy struct {
	// Threshold is the event count at or above which ShouldCompact
	// reports true.
	Threshold uint64
}

// ShouldCompact reports whether eventCount has reached the policy's
// threshold.
func (p SnapshotPolicy) ShouldCompact(eventCount uint64) bool {
	return eventCount >= p.Threshold
}

// EnvelopeInfo is the decoded summary Inspect returns for a single key's
// stored bytes, the contract §6 describes for a developer tool that
// wants to decode an envelope without deserializing its payload.
type EnvelopeInfo struct {
	Version     uint8
	CRDTType    uint8
	PayloadSize int
	IsEnvelope  bool
}

// Inspect decodes the envelope of the bytes stored at (ns, key) without
// deserializing the payload, for tooling built on top of this package
// (the CLI inspector and dashboard are external collaborators; this is
// the contract the core exposes to them).
func (db *DB) Inspect(ctx context.Context, ns, key string) (EnvelopeInfo, error) {
	raw, ok, err := db.backend.Get(ctx, ns, key)
	if err != nil {
		return EnvelopeInfo{}, &StorageError{Op: "get", Err: err}
	}
	if !ok {
		return EnvelopeInfo{}, ErrNotFound
	}
	if len(raw) == 0 || raw[0] != 0xCF {
		return EnvelopeInfo{IsEnvelope: false, PayloadSize: len(raw)}, nil
	}
	if len(raw) < 3 {
		return EnvelopeInfo{}, fmt.Errorf("storedb: inspect: truncated envelope, %d bytes", len(raw))
	}
	return EnvelopeInfo{
		IsEnvelope:  true,
		Version:     raw[1],
		CRDTType:    raw[2],
		PayloadSize: len(raw) - 3,
	}, nil
}
