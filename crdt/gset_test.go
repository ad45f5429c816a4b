package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGSet_InsertContains(t *testing.T) {
	s := NewGSet[string]()
	s.Insert("x")
	assert.True(t, s.Contains("x"))
	assert.False(t, s.Contains("y"))
}

func TestGSet_MergeIsUnion(t *testing.T) {
	a := NewGSet[string]()
	b := NewGSet[string]()
	a.Insert("x")
	b.Insert("y")

	a.Merge(b)
	b.Merge(a)

	assert.Equal(t, []string{"x", "y"}, a.Value())
	assert.Equal(t, []string{"x", "y"}, b.Value())
}

func TestGSet_Idempotent(t *testing.T) {
	a := NewGSet[string]()
	b := NewGSet[string]()
	a.Insert("x")
	b.Insert("y")

	a.Merge(b)
	a.Merge(b)
	assert.Equal(t, []string{"x", "y"}, a.Value())
}

func TestGSet_MarshalRoundTrip(t *testing.T) {
	s := NewGSet[string]()
	s.Insert("x")
	s.Insert("y")

	b, err := s.MarshalCRDT()
	assert.NoError(t, err)

	restored := NewGSet[string]()
	assert.NoError(t, restored.UnmarshalCRDT(b))
	assert.Equal(t, s.Value(), restored.Value())
}
