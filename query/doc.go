// Package query provides a deferred, push-based query engine with LINQ-style
// operators.
//
// Queries are lazy: building a pipeline with Where, Select, OrderBy and friends
// does no work. A terminal operator (Collect, Count, First, ...) reads the
// composed Source chain; values then flow from the innermost producer outward,
// one event at a time, until a single End or Error event settles the result.
//
// # Protocol
//
// A producer receives an *Emitter[T] and calls Next for each value, then End
// or Error exactly once. The emitter latches on the first terminal signal and
// silently drops everything after it, so a misbehaving producer can never
// deliver two terminal events or values after the end of the stream.
//
// Each Source.Read creates a fresh emitter and runs the producer again; a
// Queryable is a recipe, not a cached sequence.
//
// # Operators
//
// Streaming (forward as values arrive):
//
//   - Where, Skip, Take, Distinct, DistinctBy, Concat, Tap
//   - Select, SelectMany, Cast (package functions, they change the element type)
//
// Buffering (collect the whole upstream, then replay):
//
//   - OrderBy, OrderByDescending, OrderByFunc, Reverse, Intersect, IntersectBy
//
// Terminal (block until settled or ctx is done):
//
//   - Aggregate, All, Any, Count, Sum, Average
//   - First, Last, ElementAt, Single and their OrDefault variants
//   - Each, Collect
//
// # Cancellation
//
// Every read carries a context. Operators that are satisfied early (Take,
// First, Any, All, ElementAt, Single) cancel their upstream read; producers
// observe this through Emitter.Interrupted and stop.
//
// # Usage
//
//	evens := query.Range(0, 10).Where(func(n, _ int) bool { return n%2 == 0 })
//	squares := query.Select(evens, func(n, _ int) int { return n * n })
//	top, err := query.OrderByDescending(squares, func(n int) int { return n }).
//	    Take(3).
//	    Collect(ctx)
package query
