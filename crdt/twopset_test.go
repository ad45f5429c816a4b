package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestTwoPSet_S3RemoveIsForever implements scenario S3: replica a
// inserts and removes "x"; replica b inserts "x" independently. After
// a.Merge(b), "x" must stay absent from a: removal is permanent.
func TestTwoPSet_S3RemoveIsForever(t *testing.T) {
	a := NewTwoPSet[string]()
	a.Insert("x")
	a.Remove("x")

	b := NewTwoPSet[string]()
	b.Insert("x")

	a.Merge(b)
	assert.False(t, a.Contains("x"))
}

func TestTwoPSet_RemoveNoopUnlessAdded(t *testing.T) {
	s := NewTwoPSet[string]()
	s.Remove("x")
	assert.False(t, s.Contains("x"))
	s.Insert("x")
	assert.True(t, s.Contains("x"))
}

func TestTwoPSet_MergeCommutative(t *testing.T) {
	a := NewTwoPSet[string]()
	a.Insert("x")
	a.Insert("y")
	a.Remove("x")

	b := NewTwoPSet[string]()
	b.Insert("z")

	ab := NewTwoPSet[string]()
	ab.Merge(a)
	ab.Merge(b)

	ba := NewTwoPSet[string]()
	ba.Merge(b)
	ba.Merge(a)

	assert.Equal(t, ab.Value(), ba.Value())
}

func TestTwoPSet_MarshalRoundTrip(t *testing.T) {
	s := NewTwoPSet[string]()
	s.Insert("x")
	s.Insert("y")
	s.Remove("x")

	b, err := s.MarshalCRDT()
	assert.NoError(t, err)

	restored := NewTwoPSet[string]()
	assert.NoError(t, restored.UnmarshalCRDT(b))
	assert.Equal(t, s.Value(), restored.Value())
	assert.False(t, restored.Contains("x"))
}
