package hlir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedMapPreservesInsertionOrder(t *testing.T) {
	m := NewOrderedMap[int]()
	m.Put("c", 3)
	m.Put("a", 1)
	m.Put("b", 2)

	assert.Equal(t, []string{"c", "a", "b"}, m.Keys())
	assert.Equal(t, []int{3, 1, 2}, m.Values())
	assert.Equal(t, 3, m.Len())
}

func TestOrderedMapReplaceKeepsPosition(t *testing.T) {
	m := NewOrderedMap[string]()
	m.Put("x", "old")
	m.Put("y", "other")
	m.Put("x", "new")

	assert.Equal(t, []string{"x", "y"}, m.Keys())
	v, ok := m.Get("x")
	require.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, 2, m.Len())
}

func TestOrderedMapGetMissing(t *testing.T) {
	m := NewOrderedMap[int]()
	m.Put("present", 7)

	_, ok := m.Get("absent")
	assert.False(t, ok)
	assert.False(t, m.Has("absent"))
	assert.True(t, m.Has("present"))
}

func TestOrderedMapAt(t *testing.T) {
	m := NewOrderedMap[int]()
	m.Put("first", 10)
	m.Put("second", 20)

	k, v := m.At(1)
	assert.Equal(t, "second", k)
	assert.Equal(t, 20, v)
}
