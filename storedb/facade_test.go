package storedb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodestate/crdtkit/crdt"
	"github.com/nodestate/crdtkit/envelope"
	"github.com/nodestate/crdtkit/internal/codec"
	"github.com/nodestate/crdtkit/migrate"
	"github.com/nodestate/crdtkit/storage"
)

func TestDB_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := NewDB(storage.NewMemoryBackend())

	c := crdt.NewGCounter("a")
	c.IncrementBy(5)
	require.NoError(t, db.SaveDefault(ctx, "counter-1", c, 1))

	restored := crdt.NewGCounter("")
	require.NoError(t, db.LoadDefault(ctx, "counter-1", 1, restored))
	assert.EqualValues(t, 5, restored.Value())
}

func TestDB_LoadMissingKey(t *testing.T) {
	ctx := context.Background()
	db := NewDB(storage.NewMemoryBackend())
	err := db.LoadDefault(ctx, "nope", 1, crdt.NewGCounter(""))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDB_LoadOpaqueBytesWithoutEnvelope(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	db := NewDB(backend)

	legacy := crdt.NewGCounter("a")
	legacy.IncrementBy(3)
	raw, err := legacy.MarshalCRDT()
	require.NoError(t, err)
	require.NoError(t, backend.Put(ctx, DefaultNamespace, "k", raw)) // no envelope header

	restored := crdt.NewGCounter("")
	require.NoError(t, db.LoadDefault(ctx, "k", 1, restored))
	assert.EqualValues(t, 3, restored.Value())
}

// sensorV1/V2 model the same schema-evolution shape as the migrate
// package's S6 test, exercised here through the full facade.
type sensorV1 struct{ ID string }
type sensorV2 struct {
	ID       string
	Humidity *float64
}

func (s *sensorV1) MarshalCRDT() ([]byte, error) { return codec.Marshal(s) }
func (s *sensorV1) UnmarshalCRDT(b []byte) error { return codec.Unmarshal(b, s) }
func (s *sensorV2) MarshalCRDT() ([]byte, error) { return codec.Marshal(s) }
func (s *sensorV2) UnmarshalCRDT(b []byte) error { return codec.Unmarshal(b, s) }

func TestDB_LoadMigratesOldVersion(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()

	chain := migrate.NewChain(2)
	require.NoError(t, chain.Register(migrate.Step{
		From: 1, To: 2,
		Fn: func(b []byte) ([]byte, error) {
			var v1 sensorV1
			if err := codec.Unmarshal(b, &v1); err != nil {
				return nil, err
			}
			return codec.Marshal(sensorV2{ID: v1.ID})
		},
	}))

	db := NewDB(backend, WithMigrationEngine(chain), WithWriteBackOnRead(true))

	v1 := &sensorV1{ID: "sensor-42"}
	payload, err := v1.MarshalCRDT()
	require.NoError(t, err)
	require.NoError(t, backend.Put(ctx, DefaultNamespace, "s1", envelope.Encode(1, envelope.Custom, payload)))

	var out sensorV2
	require.NoError(t, db.LoadDefault(ctx, "s1", 2, &out))
	assert.Equal(t, "sensor-42", out.ID)
	assert.Nil(t, out.Humidity)

	// Write-back: a second load sees an envelope already at version 2.
	info, err := db.Inspect(ctx, DefaultNamespace, "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, info.Version)

	var again sensorV2
	require.NoError(t, db.LoadDefault(ctx, "s1", 2, &again))
	assert.Equal(t, out, again)
}

func TestDB_LoadOlderVersionWithoutEngine(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	db := NewDB(backend)

	require.NoError(t, backend.Put(ctx, DefaultNamespace, "k", envelope.Encode(1, envelope.Custom, []byte("x"))))

	var out sensorV1
	err := db.LoadDefault(ctx, "k", 2, &out)
	var migErr *MigrationError
	assert.ErrorAs(t, err, &migErr)
}

func TestDB_DeleteListExists(t *testing.T) {
	ctx := context.Background()
	db := NewDB(storage.NewMemoryBackend())

	c := crdt.NewGCounter("a")
	require.NoError(t, db.Save(ctx, "ns", "k", c, 1))

	ok, err := db.Exists(ctx, "ns", "k")
	require.NoError(t, err)
	assert.True(t, ok)

	keys, err := db.ListKeys(ctx, "ns")
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)

	require.NoError(t, db.Delete(ctx, "ns", "k"))
	ok, err = db.Exists(ctx, "ns", "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
