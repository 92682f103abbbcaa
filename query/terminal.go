package query

import (
	"context"
	"sync"

	apperrors "github.com/kbukum/smokedb/errors"
)

// outcome is a single-shot result. The first resolve or reject wins; the
// read feeding it is cancelled at that point.
type outcome[R any] struct {
	once   sync.Once
	done   chan struct{}
	value  R
	err    error
	cancel context.CancelFunc
}

func (o *outcome[R]) resolve(v R) {
	o.once.Do(func() {
		o.value = v
		close(o.done)
		o.cancel()
	})
}

func (o *outcome[R]) reject(err error) {
	o.once.Do(func() {
		o.err = err
		close(o.done)
		o.cancel()
	})
}

func (o *outcome[R]) settled() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

func (o *outcome[R]) await(ctx context.Context) (R, error) {
	select {
	case <-o.done:
		return o.value, o.err
	case <-ctx.Done():
		if o.settled() {
			return o.value, o.err
		}
		var zero R
		return zero, ctx.Err()
	}
}

// settle reads src once and blocks until the outcome is settled or ctx is
// done. onValue sees every value with its zero-based index until the outcome
// settles; onEnd runs on a clean end. An error event rejects the outcome with
// the carried error.
func settle[T, R any](ctx context.Context, src *Source[T], onValue func(o *outcome[R], v T, index int), onEnd func(o *outcome[R])) (R, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	readCtx, cancel := context.WithCancel(ctx)
	o := &outcome[R]{done: make(chan struct{}), cancel: cancel}
	index := 0
	src.Read(readCtx, func(ev Event[T]) {
		if o.settled() {
			return
		}
		switch ev.Kind {
		case EventValue:
			if onValue != nil {
				onValue(o, ev.Value, index)
			}
			index++
		case EventError:
			o.reject(ev.Err)
		case EventEnd:
			onEnd(o)
		}
	})
	return o.await(ctx)
}

// Aggregate folds every value into an accumulator, starting from initial.
func Aggregate[T, U any](ctx context.Context, q *Queryable[T], fn func(acc U, v T, index int) U, initial U) (U, error) {
	acc := initial
	return settle(ctx, q.source,
		func(_ *outcome[U], v T, i int) { acc = fn(acc, v, i) },
		func(o *outcome[U]) { o.resolve(acc) })
}

// All reports whether pred holds for every value. It settles false on the
// first value that fails pred; an empty sequence yields true.
func (q *Queryable[T]) All(ctx context.Context, pred func(v T, index int) bool) (bool, error) {
	return settle(ctx, q.source,
		func(o *outcome[bool], v T, i int) {
			if !pred(v, i) {
				o.resolve(false)
			}
		},
		func(o *outcome[bool]) { o.resolve(true) })
}

// Any reports whether pred holds for some value. It settles true on the first
// match; an empty sequence yields false.
func (q *Queryable[T]) Any(ctx context.Context, pred func(v T, index int) bool) (bool, error) {
	return settle(ctx, q.source,
		func(o *outcome[bool], v T, i int) {
			if pred(v, i) {
				o.resolve(true)
			}
		},
		func(o *outcome[bool]) { o.resolve(false) })
}

// Count returns the number of values.
func (q *Queryable[T]) Count(ctx context.Context) (int, error) {
	count := 0
	return settle(ctx, q.source,
		func(_ *outcome[int], _ T, _ int) { count++ },
		func(o *outcome[int]) { o.resolve(count) })
}

// Sum adds fn over every value.
func (q *Queryable[T]) Sum(ctx context.Context, fn func(v T, index int) float64) (float64, error) {
	var acc float64
	return settle(ctx, q.source,
		func(_ *outcome[float64], v T, i int) { acc += fn(v, i) },
		func(o *outcome[float64]) { o.resolve(acc) })
}

// Average returns the mean of fn over every value, or 0 for an empty sequence.
func (q *Queryable[T]) Average(ctx context.Context, fn func(v T, index int) float64) (float64, error) {
	var acc float64
	n := 0
	return settle(ctx, q.source,
		func(_ *outcome[float64], v T, i int) {
			acc += fn(v, i)
			n++
		},
		func(o *outcome[float64]) {
			if n == 0 {
				o.resolve(0)
				return
			}
			o.resolve(acc / float64(n))
		})
}

// First returns the first value, or ErrEmptySequence.
func (q *Queryable[T]) First(ctx context.Context) (T, error) {
	return settle(ctx, q.source,
		func(o *outcome[T], v T, _ int) { o.resolve(v) },
		func(o *outcome[T]) { o.reject(apperrors.EmptySequence()) })
}

// FirstOrDefault returns the first value, or the zero value of T.
func (q *Queryable[T]) FirstOrDefault(ctx context.Context) (T, error) {
	return settle(ctx, q.source,
		func(o *outcome[T], v T, _ int) { o.resolve(v) },
		func(o *outcome[T]) {
			var zero T
			o.resolve(zero)
		})
}

// Last returns the last value, or ErrEmptySequence.
func (q *Queryable[T]) Last(ctx context.Context) (T, error) {
	var last T
	seen := false
	return settle(ctx, q.source,
		func(_ *outcome[T], v T, _ int) {
			last = v
			seen = true
		},
		func(o *outcome[T]) {
			if !seen {
				o.reject(apperrors.EmptySequence())
				return
			}
			o.resolve(last)
		})
}

// LastOrDefault returns the last value, or the zero value of T.
func (q *Queryable[T]) LastOrDefault(ctx context.Context) (T, error) {
	var last T
	return settle(ctx, q.source,
		func(_ *outcome[T], v T, _ int) { last = v },
		func(o *outcome[T]) { o.resolve(last) })
}

// ElementAt returns the value at the zero-based index, or ErrOutOfRange.
func (q *Queryable[T]) ElementAt(ctx context.Context, index int) (T, error) {
	if index < 0 {
		var zero T
		return zero, apperrors.OutOfRange(index)
	}
	return settle(ctx, q.source,
		func(o *outcome[T], v T, i int) {
			if i == index {
				o.resolve(v)
			}
		},
		func(o *outcome[T]) { o.reject(apperrors.OutOfRange(index)) })
}

// ElementAtOrDefault returns the value at the zero-based index, or the zero
// value of T.
func (q *Queryable[T]) ElementAtOrDefault(ctx context.Context, index int) (T, error) {
	var zero T
	if index < 0 {
		return zero, nil
	}
	return settle(ctx, q.source,
		func(o *outcome[T], v T, i int) {
			if i == index {
				o.resolve(v)
			}
		},
		func(o *outcome[T]) { o.resolve(zero) })
}

// Single returns the only value matching pred. It fails with
// ErrMultipleElements as soon as a second match is seen and with ErrNoMatch
// when nothing matched.
func (q *Queryable[T]) Single(ctx context.Context, pred func(v T, index int) bool) (T, error) {
	return q.single(ctx, pred, true)
}

// SingleOrDefault is Single, except that no match yields the zero value of T.
func (q *Queryable[T]) SingleOrDefault(ctx context.Context, pred func(v T, index int) bool) (T, error) {
	return q.single(ctx, pred, false)
}

func (q *Queryable[T]) single(ctx context.Context, pred func(T, int) bool, required bool) (T, error) {
	var match T
	found := false
	return settle(ctx, q.source,
		func(o *outcome[T], v T, i int) {
			if !pred(v, i) {
				return
			}
			if found {
				o.reject(apperrors.MultipleElements())
				return
			}
			match = v
			found = true
		},
		func(o *outcome[T]) {
			if !found && required {
				o.reject(apperrors.NoMatch())
				return
			}
			o.resolve(match)
		})
}

// Each calls fn for every value in order.
func (q *Queryable[T]) Each(ctx context.Context, fn func(v T, index int)) error {
	_, err := settle(ctx, q.source,
		func(_ *outcome[struct{}], v T, i int) { fn(v, i) },
		func(o *outcome[struct{}]) { o.resolve(struct{}{}) })
	return err
}

// Collect returns every value in order. An empty sequence yields an empty,
// non-nil slice.
func (q *Queryable[T]) Collect(ctx context.Context) ([]T, error) {
	items := make([]T, 0)
	return settle(ctx, q.source,
		func(_ *outcome[[]T], v T, _ int) { items = append(items, v) },
		func(o *outcome[[]T]) { o.resolve(items) })
}
