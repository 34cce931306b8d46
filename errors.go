package slab

import "errors"

// Sentinel errors returned by Cache operations. Contract violations by
// the caller (free of an unowned pointer, double free, use after
// destroy) are explicitly undefined behavior and are not represented
// here — they are not detected at runtime.
var (
	// ErrInvalidObjectSize is the value Create panics with when asked
	// for a zero-or-negative object size.
	ErrInvalidObjectSize = errors.New("slab: object size must be positive")

	// ErrOutOfMemory is returned when the operating system refuses a new
	// chunk mapping and no slab can be produced.
	ErrOutOfMemory = errors.New("slab: out of memory")

	// ErrDestroyNotEmpty is returned by Destroy when objects are still
	// outstanding; Destroy must be called with no outstanding objects.
	ErrDestroyNotEmpty = errors.New("slab: cache destroyed with outstanding allocations")

	// ErrInvalidBatchSize is returned by AllocateMany/FreeMany for a
	// non-positive count.
	ErrInvalidBatchSize = errors.New("slab: batch size must be positive")

	// ErrNameExists is returned by the registry when Create is called
	// with a name that already has a cache.
	ErrNameExists = errors.New("slab: registry name already exists")

	// ErrNameNotFound is returned by the registry's Destroy for an
	// unknown name.
	ErrNameNotFound = errors.New("slab: registry name not found")

	// ErrCacheUnavailable is returned by the registry when cache
	// construction for a name has failed repeatedly and the guard has
	// tripped (see registry package docs).
	ErrCacheUnavailable = errors.New("slab: cache construction temporarily unavailable")
)
