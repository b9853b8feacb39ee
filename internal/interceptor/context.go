// Package interceptor implements the ordered, short-circuiting policy
// chain every inbound message passes through before reaching the
// dispatcher.
package interceptor

import (
	"time"

	"github.com/lattice-trading/hft-gateway/internal/wire"
	"github.com/lattice-trading/hft-gateway/pkg/pool"
)

// metadataCapacity is the initial capacity of the metadata slice; Set
// appends past it if a chain writes more entries. The canonical
// chain writes at most six entries (validation, throttled, throttle_status,
// log, latency_us, performance_warning); a small slice of pairs beats a
// map at this size.
const metadataCapacity = 8

type metadataEntry struct {
	key, value string
}

// Context is a per-message, single-owner value carrying the message under
// evaluation, its timing, and a small key/value scratch space interceptors
// write into. Contexts are never shared across messages; they are pooled
// to avoid a per-message heap allocation.
type Context struct {
	Message *wire.Message

	start time.Time
	end   time.Time

	metadata []metadataEntry
}

var contextPool = pool.NewWithReset(
	func() *Context {
		return &Context{metadata: make([]metadataEntry, 0, metadataCapacity)}
	},
	func(ctx *Context) {
		ctx.Message = nil
		ctx.start = time.Time{}
		ctx.end = time.Time{}
		ctx.metadata = ctx.metadata[:0]
	},
)

// Acquire returns a pooled Context for m, with its start timer running.
func Acquire(m *wire.Message) *Context {
	ctx := contextPool.Get()
	ctx.Message = m
	ctx.start = time.Now()
	return ctx
}

// Release returns ctx to the pool. Callers must not use ctx after calling
// Release.
func Release(ctx *Context) {
	contextPool.Put(ctx)
}

// Set records a metadata key/value pair, overwriting any existing value
// for the same key.
func (c *Context) Set(key, value string) {
	for i := range c.metadata {
		if c.metadata[i].key == key {
			c.metadata[i].value = value
			return
		}
	}
	c.metadata = append(c.metadata, metadataEntry{key, value})
}

// Get returns the metadata value for key and whether it was present.
func (c *Context) Get(key string) (string, bool) {
	for i := range c.metadata {
		if c.metadata[i].key == key {
			return c.metadata[i].value, true
		}
	}
	return "", false
}

// StopTimer records the end of processing. It is idempotent: only the
// first call sets c.end.
func (c *Context) StopTimer() {
	if c.end.IsZero() {
		c.end = time.Now()
	}
}

// ElapsedMicros returns the elapsed time between Acquire and StopTimer, in
// microseconds. If StopTimer has not been called yet, it measures up to
// now without mutating c.end. Computed from nanoseconds rather than
// time.Duration.Microseconds, which truncates to 0 for anything under a
// microsecond, a common case on a path this fast.
func (c *Context) ElapsedMicros() float64 {
	end := c.end
	if end.IsZero() {
		end = time.Now()
	}
	return float64(end.Sub(c.start).Nanoseconds()) / 1000.0
}
