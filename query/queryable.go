package query

import "context"

// Iterator provides pull-based sequential access to a stream of values.
// FromIterator adapts one into a push Source.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

// Queryable is an immutable pipeline stage wrapping exactly one Source.
// Every operator returns a new Queryable; the receiver is never modified.
type Queryable[T any] struct {
	source *Source[T]
}

// New wraps an existing Source.
func New[T any](src *Source[T]) *Queryable[T] {
	return &Queryable[T]{source: src}
}

// Source returns the underlying Source.
func (q *Queryable[T]) Source() *Source[T] {
	return q.source
}

// --- Constructors ---

// From creates a query over the given values.
func From[T any](items ...T) *Queryable[T] {
	return FromSlice(items)
}

// FromSlice creates a query that emits every element of items in order, then ends.
// The slice is read on every run, not copied.
func FromSlice[T any](items []T) *Queryable[T] {
	return New(NewSource(func(e *Emitter[T]) {
		for _, v := range items {
			if e.Interrupted() {
				return
			}
			e.Next(v)
		}
		e.End()
	}))
}

// Range creates a query emitting the integers in [from, to).
// It emits nothing when to <= from.
func Range(from, to int) *Queryable[int] {
	return New(NewSource(func(e *Emitter[int]) {
		for i := from; i < to; i++ {
			if e.Interrupted() {
				return
			}
			e.Next(i)
		}
		e.End()
	}))
}

// Empty creates a query that ends immediately.
func Empty[T any]() *Queryable[T] {
	return New(NewSource(func(e *Emitter[T]) { e.End() }))
}

// Fail creates a query that fails immediately with err.
func Fail[T any](err error) *Queryable[T] {
	return New(NewSource(func(e *Emitter[T]) { e.Error(err) }))
}

// FromIterator creates a query that pulls from a new iterator on every run.
// The iterator is closed when it is exhausted, fails, or the read is interrupted.
func FromIterator[T any](create func(ctx context.Context) Iterator[T]) *Queryable[T] {
	return New(NewSource(func(e *Emitter[T]) {
		ctx := e.Context()
		iter := create(ctx)
		defer iter.Close()
		for !e.Interrupted() {
			val, ok, err := iter.Next(ctx)
			if err != nil {
				e.Error(err)
				return
			}
			if !ok {
				e.End()
				return
			}
			e.Next(val)
		}
	}))
}

// FromChannel creates a query that drains ch until it is closed.
// A channel can only be drained once, so the resulting query is single-use.
func FromChannel[T any](ch <-chan T) *Queryable[T] {
	return New(NewSource(func(e *Emitter[T]) {
		ctx := e.Context()
		for !e.Done() {
			select {
			case v, open := <-ch:
				if !open {
					e.End()
					return
				}
				e.Next(v)
			case <-ctx.Done():
				e.Error(ctx.Err())
				return
			}
		}
	}))
}
