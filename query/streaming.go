package query

import (
	"context"
	"reflect"

	apperrors "github.com/kbukum/smokedb/errors"
)

// pipe builds a stage that reads src and hands every value, with its
// zero-based upstream index, to the step created for the run. Errors and the
// end pass through. Once out has terminated the upstream read is cancelled.
func pipe[T, U any](src *Source[T], step func(out *Emitter[U]) func(v T, index int)) *Queryable[U] {
	return New(NewSource(func(out *Emitter[U]) {
		ctx, cancel := context.WithCancel(out.Context())
		onValue := step(out)
		index := 0
		src.Read(ctx, func(ev Event[T]) {
			switch ev.Kind {
			case EventValue:
				onValue(ev.Value, index)
				index++
			case EventError:
				out.Error(ev.Err)
			case EventEnd:
				out.End()
			}
			if out.Done() {
				cancel()
			}
		})
	}))
}

// Where keeps the values for which pred returns true.
func (q *Queryable[T]) Where(pred func(v T, index int) bool) *Queryable[T] {
	return pipe(q.source, func(out *Emitter[T]) func(T, int) {
		return func(v T, i int) {
			if pred(v, i) {
				out.Next(v)
			}
		}
	})
}

// Skip drops the first n values.
func (q *Queryable[T]) Skip(n int) *Queryable[T] {
	return pipe(q.source, func(out *Emitter[T]) func(T, int) {
		return func(v T, i int) {
			if i >= n {
				out.Next(v)
			}
		}
	})
}

// Take keeps the first n values. The stage ends as soon as n values have
// passed and the upstream read is cancelled. For n <= 0 the result is empty
// and upstream is never read, so an upstream error is not observed.
func (q *Queryable[T]) Take(n int) *Queryable[T] {
	if n <= 0 {
		return Empty[T]()
	}
	return pipe(q.source, func(out *Emitter[T]) func(T, int) {
		return func(v T, i int) {
			if i < n {
				out.Next(v)
			}
			if i+1 >= n {
				out.End()
			}
		}
	})
}

// Distinct drops values equal to one already emitted, using DefaultEqual.
// The first occurrence wins.
func (q *Queryable[T]) Distinct() *Queryable[T] {
	return q.DistinctBy(nil)
}

// DistinctBy drops values equal under eq to one already emitted. A nil eq
// means DefaultEqual.
func (q *Queryable[T]) DistinctBy(eq Equal[T]) *Queryable[T] {
	return pipe(q.source, func(out *Emitter[T]) func(T, int) {
		seen := newValueSet(eq)
		return func(v T, _ int) {
			if seen.add(v) {
				out.Next(v)
			}
		}
	})
}

// Tap calls fn for each value, then passes the value through unchanged.
func (q *Queryable[T]) Tap(fn func(v T, index int)) *Queryable[T] {
	return pipe(q.source, func(out *Emitter[T]) func(T, int) {
		return func(v T, i int) {
			fn(v, i)
			out.Next(v)
		}
	})
}

// Concat emits every value of q, then every value of other. other is only
// read after q has ended; an error from q ends the sequence without reading
// other.
func (q *Queryable[T]) Concat(other *Queryable[T]) *Queryable[T] {
	first, second := q.source, other.source
	return New(NewSource(func(out *Emitter[T]) {
		ctx := out.Context()
		first.Read(ctx, func(ev Event[T]) {
			switch ev.Kind {
			case EventValue:
				out.Next(ev.Value)
			case EventError:
				out.Error(ev.Err)
			case EventEnd:
				second.Read(ctx, forward(out))
			}
		})
	}))
}

// Select maps each value through fn.
func Select[T, U any](q *Queryable[T], fn func(v T, index int) U) *Queryable[U] {
	return pipe(q.source, func(out *Emitter[U]) func(T, int) {
		return func(v T, i int) {
			out.Next(fn(v, i))
		}
	})
}

// SelectMany maps each value to a slice and emits the slice elements in order.
// The index passed to fn counts upstream values, not emitted ones.
func SelectMany[T, U any](q *Queryable[T], fn func(v T, index int) []U) *Queryable[U] {
	return pipe(q.source, func(out *Emitter[U]) func(T, int) {
		return func(v T, i int) {
			for _, u := range fn(v, i) {
				out.Next(u)
			}
		}
	})
}

// Cast converts each value to U with a type assertion. A value that is not a
// U fails the sequence with ErrInvalidCast.
func Cast[U, T any](q *Queryable[T]) *Queryable[U] {
	target := reflect.TypeFor[U]().String()
	return pipe(q.source, func(out *Emitter[U]) func(T, int) {
		return func(v T, _ int) {
			u, ok := any(v).(U)
			if !ok {
				out.Error(apperrors.InvalidCast(v, target))
				return
			}
			out.Next(u)
		}
	})
}
