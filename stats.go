package slab

import "sync/atomic"

// cacheStats holds the atomic counters backing Cache.Stats — the
// handful of counters worth exposing for one cache.
type cacheStats struct {
	allocations      atomic.Uint64
	deallocations    atomic.Uint64
	remoteFrees      atomic.Uint64
	chunksAcquired   atomic.Uint64
	hoardReturns     atomic.Uint64
	allocationErrors atomic.Uint64
}

// CacheStats is a point-in-time snapshot of a Cache's usage counters.
type CacheStats struct {
	ObjectSize       int
	SlabBytes        int
	Capacity         int
	Allocations      uint64
	Deallocations    uint64
	RemoteFrees      uint64
	ChunksAcquired   uint64
	HoardReturns     uint64
	AllocationErrors uint64
	Outstanding      int64
}

// Stats returns a snapshot of this cache's counters.
func (c *Cache) Stats() CacheStats {
	allocs := c.stats.allocations.Load()
	frees := c.stats.deallocations.Load()
	return CacheStats{
		ObjectSize:       int(c.geo.objSize),
		SlabBytes:        int(c.geo.slabBytes),
		Capacity:         int(c.geo.capacity),
		Allocations:      allocs,
		Deallocations:    frees,
		RemoteFrees:      c.stats.remoteFrees.Load(),
		ChunksAcquired:   c.stats.chunksAcquired.Load(),
		HoardReturns:     c.stats.hoardReturns.Load(),
		AllocationErrors: c.stats.allocationErrors.Load(),
		Outstanding:      int64(allocs) - int64(frees),
	}
}
