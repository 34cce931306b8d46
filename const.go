package slab

// Tuning constants from the design.
const (
	// MinObjectSize is the smallest object a cache will hand out; smaller
	// requests are rounded up so the intrusive freelist pointer always fits.
	MinObjectSize = 16

	// MinObjectsPerSlab is the minimum number of objects that must fit in
	// one slab once metadata and alignment padding are subtracted.
	MinObjectsPerSlab = 8

	// TargetChunkBytes is the preferred size of one OS mapping backing
	// several slabs.
	TargetChunkBytes = 2 << 20 // 2 MiB

	// MaxLocalEmptySlabs bounds how many empty slabs a context hoards
	// before returning half of them to the cache's global pool.
	MaxLocalEmptySlabs = 32

	// scavengeWalkBound caps how many full slabs a context inspects for a
	// reclaimable remote freelist before giving up and falling through to
	// the global pool.
	scavengeWalkBound = 64

	// scavengeCooldown is how many allocation misses a context skips the
	// full-list scavenge step for, once a scavenge pass finds nothing.
	scavengeCooldown = 64

	// defaultCacheLineSize is used when the platform doesn't expose one.
	defaultCacheLineSize = 64
)
