package packer

import (
	"cmp"
	"slices"
)

// Set is an ordered set. It packs as a collection in ascending order.
type Set[T cmp.Ordered] map[T]struct{}

func NewSet[T cmp.Ordered](elems ...T) Set[T] {
	s := make(Set[T], len(elems))
	for _, e := range elems {
		s[e] = struct{}{}
	}
	return s
}

func (s Set[T]) Has(elem T) bool {
	_, ok := s[elem]
	return ok
}

func (s Set[T]) Add(elem T) {
	s[elem] = struct{}{}
}

// Sorted returns the elements in ascending order.
func (s Set[T]) Sorted() []T {
	l := make([]T, 0, len(s))
	for e := range s {
		l = append(l, e)
	}
	slices.Sort(l)
	return l
}

func (s Set[T]) Len() int {
	return len(s)
}

func (s Set[T]) Range(fn func(elem any) bool) {
	for _, e := range s.Sorted() {
		if !fn(e) {
			return
		}
	}
}

func (s *Set[T]) NewElem() any {
	return new(T)
}

func (s *Set[T]) Insert(elem any) {
	if *s == nil {
		*s = make(Set[T])
	}
	(*s)[*elem.(*T)] = struct{}{}
}
