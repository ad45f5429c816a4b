package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestError_WrapsBackendContext exercises the Error contract a concrete
// SQL/KV backend uses to report a failure with its identity and the
// (namespace, key) it was attempting, per §7.
func TestError_WrapsBackendContext(t *testing.T) {
	cause := errors.New("connection refused")
	err := &Error{Backend: "sqlite", Namespace: "sensors", Key: "reading-1", Op: "get", Err: cause}

	assert.Contains(t, err.Error(), "sqlite")
	assert.Contains(t, err.Error(), "sensors/reading-1")
	assert.ErrorIs(t, err, cause)
}

func TestMemoryBackend_StateStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	ok, err := m.Exists(ctx, "ns", "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, "ns", "k", []byte("v1")))

	v, ok, err := m.Get(ctx, "ns", "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	keys, err := m.ListKeys(ctx, "ns")
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)

	require.NoError(t, m.Delete(ctx, "ns", "k"))
	ok, err = m.Exists(ctx, "ns", "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryBackend_PutDoesNotAliasCaller(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	buf := []byte("original")
	require.NoError(t, m.Put(ctx, "ns", "k", buf))
	buf[0] = 'X'

	v, _, err := m.Get(ctx, "ns", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), v)
}

// TestMemoryBackend_S7EventsAndCompact implements scenario S7: append 8
// events, snapshot at the max sequence, truncate before it, and verify
// 7 events are removed, 1 remains, and the snapshot round-trips.
func TestMemoryBackend_S7EventsAndCompact(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	var maxSeq uint64
	for i := 0; i < 8; i++ {
		seq, err := m.AppendEvent(ctx, "ns", "entity-1", []byte("ev"), uint64(i), "node-1")
		require.NoError(t, err)
		maxSeq = seq
	}

	count, err := m.EventCount(ctx, "ns", "entity-1")
	require.NoError(t, err)
	assert.EqualValues(t, 8, count)

	require.NoError(t, m.SaveSnapshot(ctx, "ns", "entity-1", Snapshot{
		Payload: []byte("S"), AtSequence: maxSeq, Version: 1,
	}))

	removed, err := m.TruncateEventsBefore(ctx, "ns", "entity-1", maxSeq)
	require.NoError(t, err)
	assert.EqualValues(t, 7, removed)

	count, err = m.EventCount(ctx, "ns", "entity-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	snap, ok, err := m.LoadSnapshot(ctx, "ns", "entity-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("S"), snap.Payload)
	assert.Equal(t, maxSeq, snap.AtSequence)
}

func TestMemoryBackend_EventsSinceIsAscendingAndExclusive(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	var firstSeq uint64
	for i := 0; i < 3; i++ {
		seq, err := m.AppendEvent(ctx, "ns", "e", []byte{byte(i)}, 0, "n")
		require.NoError(t, err)
		if i == 0 {
			firstSeq = seq
		}
	}

	events, err := m.EventsSince(ctx, "ns", "e", firstSeq)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Less(t, events[0].Sequence, events[1].Sequence)
}

func TestMemoryBackend_SequencesDistinctAcrossEntities(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	seqA, err := m.AppendEvent(ctx, "ns", "a", []byte("x"), 0, "n")
	require.NoError(t, err)
	seqB, err := m.AppendEvent(ctx, "ns", "b", []byte("y"), 0, "n")
	require.NoError(t, err)
	assert.NotEqual(t, seqA, seqB)
}

func TestMemoryBackend_Transaction(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	err := m.Transaction(ctx, func(ctx context.Context) error {
		return m.Put(ctx, "ns", "k", []byte("v"))
	})
	require.NoError(t, err)

	v, ok, err := m.Get(ctx, "ns", "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestMemoryBackend_PutBatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	require.NoError(t, m.PutBatch(ctx, "ns", map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	}))

	keys, err := m.ListKeys(ctx, "ns")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)
}
