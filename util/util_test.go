package util

import (
	"github.com/stretchr/testify/assert"
	"slices"
	"strconv"
	"testing"
)

func TestStack(t *testing.T) {
	var s Stack[int]
	_, ok := s.Pop()
	assert.False(t, ok)

	s.Push(1)
	s.Push(2)
	assert.Equal(t, 2, s.Len())

	top, ok := s.Pop()
	assert.True(t, ok)
	assert.Equal(t, 2, top)
	top, _ = s.Pop()
	assert.Equal(t, 1, top)
	assert.Zero(t, s.Len())
}

func TestOrderedSet(t *testing.T) {
	s := NewOrderedSet("b", "a", "b")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Insert("c"))
	assert.False(t, s.Insert("a"))
	assert.True(t, s.Contains("c"))
	assert.False(t, s.Contains("d"))

	assert.Equal(t, []string{"b", "a", "c"}, s.Slice())
	assert.Equal(t, []string{"b", "a", "c"}, slices.Collect(s.All()))

	// the returned slice is a copy
	elems := s.Slice()
	elems[0] = "z"
	assert.False(t, s.Contains("z"))
	assert.Equal(t, "b", s.Slice()[0])
}

func TestMap(t *testing.T) {
	assert.Equal(t, []string{"1", "2"}, Map([]int{1, 2}, strconv.Itoa))
	assert.Empty(t, Map(nil, strconv.Itoa))
}
