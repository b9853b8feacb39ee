// Package pool provides a typed wrapper over sync.Pool for the
// allocation-sensitive objects on the message path: interceptor contexts
// and per-connection read buffers.
package pool

import "sync"

// Pool recycles values of type T, avoiding per-message heap allocation.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
}

// New creates a Pool whose Get calls generate() on first use.
func New[T any](generate func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
}

// NewWithReset is like New, but reset is invoked on every value passed to
// Put, before it becomes eligible for reuse. This is how InterceptorContext
// pooling clears stale metadata between messages instead of leaking state
// from one client's request into another's.
func NewWithReset[T any](generate func() T, reset func(T)) *Pool[T] {
	p := New(generate)
	p.reset = reset
	return p
}

// NewHot pre-populates the pool with hotSize values so early Get calls
// can skip the generate() cost. sync.Pool may still drop pooled values
// during garbage collection, after which Get falls back to generate().
func NewHot[T any](generate func() T, hotSize int) *Pool[T] {
	p := New[T](generate)
	for i := 0; i < hotSize; i++ {
		p.pool.Put(generate())
	}
	return p
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	if p.reset != nil {
		p.reset(value)
	}
	p.pool.Put(value)
}
