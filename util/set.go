package util

import (
	"github.com/hashicorp/go-set/v3"
	"iter"
	"slices"
)

// OrderedSet is a set that remembers insertion order
type OrderedSet[A comparable] struct {
	members *set.Set[A]
	order   []A
}

func NewOrderedSet[A comparable](elems ...A) *OrderedSet[A] {
	s := &OrderedSet[A]{members: set.New[A](len(elems))}
	for _, elem := range elems {
		s.Insert(elem)
	}
	return s
}

// Insert adds elem unless present, and reports whether it was added
func (s *OrderedSet[A]) Insert(elem A) bool {
	if !s.members.Insert(elem) {
		return false
	}
	s.order = append(s.order, elem)
	return true
}

func (s *OrderedSet[A]) Contains(elem A) bool {
	return s.members.Contains(elem)
}

func (s *OrderedSet[A]) Len() int {
	return len(s.order)
}

// Slice returns the elements in insertion order
func (s *OrderedSet[A]) Slice() []A {
	return slices.Clone(s.order)
}

func (s *OrderedSet[A]) All() iter.Seq[A] {
	return slices.Values(s.order)
}
