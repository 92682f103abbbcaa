package component

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/smokedb/logger"
)

// Lazy opens a value on first use and shares it with every later caller.
// A failed open is not cached; the next Get tries again.
type Lazy[T any] struct {
	name   string
	open   func(ctx context.Context) (T, error)
	mu     sync.RWMutex
	value  T
	loaded bool
}

// NewLazy creates a Lazy that calls open at most once per successful load.
func NewLazy[T any](name string, open func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{name: name, open: open}
}

// Name returns the name given at construction.
func (l *Lazy[T]) Name() string {
	return l.name
}

// Get returns the loaded value, opening it first if needed. Concurrent
// callers wait for a single open.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.RLock()
	if l.loaded {
		v := l.value
		l.mu.RUnlock()
		return v, nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return l.value, nil
	}

	logger.Debug("opening lazy component", logger.Fields(logger.FieldComponent, l.name))
	v, err := l.open(ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to open %s: %w", l.name, err)
	}
	l.value = v
	l.loaded = true
	logger.Debug("lazy component opened", logger.Fields(logger.FieldComponent, l.name))
	return v, nil
}

// Loaded reports whether a value is currently held.
func (l *Lazy[T]) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

// Reset releases the held value with release, if one is loaded, so the next
// Get opens again. release may be nil.
func (l *Lazy[T]) Reset(release func(T) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		return nil
	}
	v := l.value
	var zero T
	l.value = zero
	l.loaded = false
	if release == nil {
		return nil
	}
	return release(v)
}
