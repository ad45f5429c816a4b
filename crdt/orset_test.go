package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestORSet_S2AddWins implements scenario S2: replica a contains "x";
// clone into b under a different actor. a removes "x" while b
// concurrently inserts "x" under a fresh tag the remover never observed.
// After bidirectional merge, "x" must be present in both.
func TestORSet_S2AddWins(t *testing.T) {
	a := NewORSet[string]("a")
	a.Insert("x")

	b := NewORSet[string]("b")
	b.Merge(a) // b starts from a clone of a's state

	a.Remove("x")
	b.Insert("x") // fresh tag under actor b, never observed by a's remove

	a.Merge(b)
	b.Merge(a)

	assert.True(t, a.Contains("x"))
	assert.True(t, b.Contains("x"))
}

func TestORSet_RemoveWithoutInsertIsNoop(t *testing.T) {
	s := NewORSet[string]("a")
	s.Remove("x")
	assert.False(t, s.Contains("x"))
}

func TestORSet_TagsAreMonotonic(t *testing.T) {
	s := NewORSet[string]("a")
	t1 := s.Insert("x")
	t2 := s.Insert("y")
	assert.Greater(t, t2.Counter, t1.Counter)
}

func TestORSet_DeltaEquivalence(t *testing.T) {
	a := NewORSet[string]("a")
	b := NewORSet[string]("b")
	a.Insert("x")
	b.Insert("y")

	delta := a.Delta(b)
	b.ApplyDelta(delta)

	direct := NewORSet[string]("b")
	direct.Insert("y")
	direct.Merge(a)

	assert.ElementsMatch(t, direct.Value(), b.Value())
}

func TestORSet_DeltaSameDeltaTombstoneWins(t *testing.T) {
	// A tag present in both Additions and Tombstones of the same delta
	// must end up tombstoned.
	s := NewORSet[string]("a")
	tag := s.Insert("x")

	d := &ORSetDelta[string]{
		Additions:  map[string]map[Tag]struct{}{"x": {tag: {}}},
		Tombstones: map[Tag]struct{}{tag: {}},
	}

	target := NewORSet[string]("b")
	target.ApplyDelta(d)
	assert.False(t, target.Contains("x"))
}

func TestORSet_MergeIdempotent(t *testing.T) {
	a := NewORSet[string]("a")
	b := NewORSet[string]("b")
	a.Insert("x")
	b.Insert("y")

	a.Merge(b)
	first := append([]string(nil), a.Value()...)
	a.Merge(b)
	assert.Equal(t, first, a.Value())
}

func TestORSet_MarshalRoundTrip(t *testing.T) {
	s := NewORSet[string]("a")
	s.Insert("x")
	s.Insert("y")
	s.Remove("x")

	b, err := s.MarshalCRDT()
	assert.NoError(t, err)

	restored := NewORSet[string]("")
	assert.NoError(t, restored.UnmarshalCRDT(b))
	assert.Equal(t, s.Value(), restored.Value())
}
