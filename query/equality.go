package query

import "reflect"

// Equal reports whether two elements are the same for Distinct and Intersect.
type Equal[T any] func(a, b T) bool

// DefaultEqual compares comparable values with ==. Slices, maps, funcs and
// channels compare by reference: they are equal when they share the same
// underlying storage. Other non-comparable values fall back to
// reflect.DeepEqual.
func DefaultEqual[T any](a, b T) bool {
	return sameValue(any(a), any(b))
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if hashable(a) && hashable(b) {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Map, reflect.Func, reflect.Chan:
		return va.Pointer() == vb.Pointer()
	default:
		return reflect.DeepEqual(a, b)
	}
}

// hashable reports whether v can be used as a map key without panicking.
func hashable(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).Comparable()
}

// valueSet is an insertion-ordered membership set. With the default equality,
// comparable values are hashed and the rest are scanned linearly.
type valueSet[T any] struct {
	eq     Equal[T]
	hashed map[any]struct{}
	items  []T
}

func newValueSet[T any](eq Equal[T]) *valueSet[T] {
	return &valueSet[T]{eq: eq, hashed: make(map[any]struct{})}
}

// add inserts v and reports whether it was not already present.
func (s *valueSet[T]) add(v T) bool {
	if s.contains(v) {
		return false
	}
	if s.eq == nil && hashable(any(v)) {
		s.hashed[any(v)] = struct{}{}
		return true
	}
	s.items = append(s.items, v)
	return true
}

func (s *valueSet[T]) contains(v T) bool {
	if s.eq == nil {
		if hashable(any(v)) {
			_, ok := s.hashed[any(v)]
			return ok
		}
		for _, item := range s.items {
			if sameValue(any(item), any(v)) {
				return true
			}
		}
		return false
	}
	for _, item := range s.items {
		if s.eq(item, v) {
			return true
		}
	}
	return false
}
