package slab

import (
	"log/slog"
	"unsafe"
)

// CacheOption configures a Cache at construction time via the
// functional-options pattern.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	cacheLine int
	ctor      func(unsafe.Pointer)
	dtor      func(unsafe.Pointer)
	logger    *slog.Logger
}

func defaultCacheConfig() cacheConfig {
	return cacheConfig{
		cacheLine: defaultCacheLineSize,
		ctor:      nil,
		dtor:      nil,
		logger:    nil,
	}
}

// WithCacheLine overrides the cache line size used for slab coloring.
// Most callers should leave this at its default.
func WithCacheLine(size int) CacheOption {
	return func(c *cacheConfig) {
		c.cacheLine = size
	}
}

// WithConstructor sets the per-object initialization hook. When a
// destructor is also set, the constructor runs on every Allocate and
// the destructor on every Free. When no destructor is set, the
// constructor instead runs once per slot at slab initialization —
// objects come back from Allocate already constructed, and the
// constructor never runs again over their lifetime. In that mode the
// first pointer-sized word of an object does not keep what the
// constructor wrote: it holds the freelist link while the slot is free.
func WithConstructor(ctor func(unsafe.Pointer)) CacheOption {
	return func(c *cacheConfig) {
		c.ctor = ctor
	}
}

// WithDestructor sets the per-object hook run before an object is
// returned to the pool by Free.
func WithDestructor(dtor func(unsafe.Pointer)) CacheOption {
	return func(c *cacheConfig) {
		c.dtor = dtor
	}
}

// WithLogger attaches a structured logger for the cache's rare,
// global-lock-path events (chunk acquisition, hoarding). Never called
// on the per-object fast path.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *cacheConfig) {
		c.logger = logger
	}
}
