package query

import (
	"context"
	"sync/atomic"
)

// EventKind tags the shape of an Event.
type EventKind uint8

const (
	// EventValue carries a produced element.
	EventValue EventKind = iota
	// EventError carries a terminal failure.
	EventError
	// EventEnd signals terminal completion.
	EventEnd
)

// String returns the kind name.
func (k EventKind) String() string {
	switch k {
	case EventValue:
		return "value"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Event is one element of a subscription: a value, an error or the end.
// For a single read a consumer observes zero or more value events followed by
// exactly one error or end event.
type Event[T any] struct {
	Kind  EventKind
	Value T
	Err   error
}

// ValueEvent returns a value event.
func ValueEvent[T any](v T) Event[T] {
	return Event[T]{Kind: EventValue, Value: v}
}

// ErrorEvent returns an error event.
func ErrorEvent[T any](err error) Event[T] {
	return Event[T]{Kind: EventError, Err: err}
}

// EndEvent returns an end event.
func EndEvent[T any]() Event[T] {
	return Event[T]{Kind: EventEnd}
}

// Emitter is the only channel through which a producer reports values,
// a failure, or completion to its reader. It is owned by one producer
// invocation and is not reusable.
//
// The first call to Error or End latches the emitter. After that, Next,
// Error and End are no-ops.
type Emitter[T any] struct {
	ctx     context.Context
	done    atomic.Bool
	onValue func(T)
	onError func(error)
	onEnd   func()
}

// NewEmitter builds an emitter around the reader's callbacks. Nil callbacks
// are skipped. A nil ctx is treated as context.Background.
func NewEmitter[T any](ctx context.Context, onValue func(T), onError func(error), onEnd func()) *Emitter[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Emitter[T]{ctx: ctx, onValue: onValue, onError: onError, onEnd: onEnd}
}

// Next delivers v unless the emitter has terminated.
func (e *Emitter[T]) Next(v T) {
	if e.done.Load() {
		return
	}
	if e.onValue != nil {
		e.onValue(v)
	}
}

// Error terminates the emitter with err, then signals the end.
func (e *Emitter[T]) Error(err error) {
	if !e.done.CompareAndSwap(false, true) {
		return
	}
	if e.onError != nil {
		e.onError(err)
	}
	if e.onEnd != nil {
		e.onEnd()
	}
}

// End terminates the emitter.
func (e *Emitter[T]) End() {
	if !e.done.CompareAndSwap(false, true) {
		return
	}
	if e.onEnd != nil {
		e.onEnd()
	}
}

// Done reports whether a terminal signal has been latched.
func (e *Emitter[T]) Done() bool {
	return e.done.Load()
}

// Context returns the context of the read this emitter belongs to.
func (e *Emitter[T]) Context() context.Context {
	return e.ctx
}

// Interrupted reports whether the producer should stop emitting. It is true
// once the emitter has terminated or its read context is done; in the latter
// case the emitter is terminated with the context error first.
func (e *Emitter[T]) Interrupted() bool {
	if e.done.Load() {
		return true
	}
	if err := e.ctx.Err(); err != nil {
		e.Error(err)
		return true
	}
	return false
}

// Producer is a function that emits a sequence through an Emitter.
// It may emit synchronously before returning or later from another goroutine.
type Producer[T any] func(e *Emitter[T])

// Source is a deferred producer. It holds no state of its own: every Read
// runs the producer again with a fresh Emitter.
type Source[T any] struct {
	produce Producer[T]
}

// NewSource wraps a producer.
func NewSource[T any](produce Producer[T]) *Source[T] {
	return &Source[T]{produce: produce}
}

// Read runs the producer once and dispatches its events to fn.
// fn receives exactly one terminal event: Error or End, never both.
func (s *Source[T]) Read(ctx context.Context, fn func(Event[T])) {
	failed := false
	e := NewEmitter(ctx,
		func(v T) { fn(ValueEvent(v)) },
		func(err error) {
			failed = true
			fn(ErrorEvent[T](err))
		},
		func() {
			if !failed {
				fn(EndEvent[T]())
			}
		},
	)
	s.produce(e)
}

// forward returns an event handler that re-emits every event on out.
func forward[T any](out *Emitter[T]) func(Event[T]) {
	return func(ev Event[T]) {
		switch ev.Kind {
		case EventValue:
			out.Next(ev.Value)
		case EventError:
			out.Error(ev.Err)
		case EventEnd:
			out.End()
		}
	}
}
