package query

import (
	"cmp"
	"slices"
)

// buffered collects the whole upstream, rearranges it, then replays it.
// If collecting fails nothing is emitted and the stage fails with the same
// error.
func buffered[T any](q *Queryable[T], arrange func(items []T) []T) *Queryable[T] {
	return New(NewSource(func(out *Emitter[T]) {
		items, err := q.Collect(out.Context())
		if err != nil {
			out.Error(err)
			return
		}
		for _, v := range arrange(items) {
			if out.Interrupted() {
				return
			}
			out.Next(v)
		}
		out.End()
	}))
}

// OrderBy sorts values ascending by key. Values with equal keys keep their
// relative order.
func OrderBy[T any, K cmp.Ordered](q *Queryable[T], key func(T) K) *Queryable[T] {
	return OrderByFunc(q, func(a, b T) int {
		return cmp.Compare(key(a), key(b))
	})
}

// OrderByDescending sorts values descending by key. Values with equal keys
// keep their relative order.
func OrderByDescending[T any, K cmp.Ordered](q *Queryable[T], key func(T) K) *Queryable[T] {
	return OrderByFunc(q, func(a, b T) int {
		return cmp.Compare(key(b), key(a))
	})
}

// OrderByFunc sorts values with a three-way comparison. The sort is stable.
func OrderByFunc[T any](q *Queryable[T], compare func(a, b T) int) *Queryable[T] {
	return buffered(q, func(items []T) []T {
		slices.SortStableFunc(items, compare)
		return items
	})
}

// Reverse emits the values in reverse order.
func (q *Queryable[T]) Reverse() *Queryable[T] {
	return buffered(q, func(items []T) []T {
		slices.Reverse(items)
		return items
	})
}

// Intersect collects q, then streams other and keeps the values of other that
// are present in q, in other's order. Membership uses DefaultEqual.
func (q *Queryable[T]) Intersect(other *Queryable[T]) *Queryable[T] {
	return q.IntersectBy(other, nil)
}

// IntersectBy is Intersect with a custom equality. A nil eq means DefaultEqual.
func (q *Queryable[T]) IntersectBy(other *Queryable[T], eq Equal[T]) *Queryable[T] {
	return New(NewSource(func(out *Emitter[T]) {
		items, err := q.Collect(out.Context())
		if err != nil {
			out.Error(err)
			return
		}
		members := newValueSet(eq)
		for _, v := range items {
			members.add(v)
		}
		filtered := other.Where(func(v T, _ int) bool {
			return members.contains(v)
		})
		filtered.source.Read(out.Context(), forward(out))
	}))
}
