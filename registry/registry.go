// Package registry provides an out-of-core, name-keyed collaborator in
// front of the slab package, letting callers share caches by name
// instead of threading *slab.Cache values through their own code.
package registry

import (
	"sync"
	"time"

	"github.com/willf/bitset"

	"github.com/VishwajeetSinghParihar750/slabAllocator"
)

// Default circuit-breaker-style guard parameters.
const (
	defaultFailureThreshold = 5
	defaultRecoveryTimeout  = time.Second
)

// entry holds one named, live cache.
type entry struct {
	mu    sync.Mutex
	cache *slab.Cache
}

// guard is the construction failure-guard for one name. It is keyed by
// name rather than by slot, and persists in Registry.guards across
// Destroy/recreate cycles for that name — a slot is only held while a
// cache is live, but a name that keeps failing to construct must keep
// tripping the guard even after each failed attempt releases its slot.
type guard struct {
	mu sync.Mutex

	failureCount int
	openUntil    time.Time
}

func (g *guard) open(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failureCount >= defaultFailureThreshold && now.Before(g.openUntil)
}

func (g *guard) recordFailure(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failureCount++
	if g.failureCount >= defaultFailureThreshold {
		g.openUntil = now.Add(defaultRecoveryTimeout)
	}
}

func (g *guard) recordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failureCount = 0
	g.openUntil = time.Time{}
}

// Registry maps names to *slab.Cache instances. Slot indices are
// recycled through a bitset rather than left to grow unbounded, so a
// program that repeatedly creates and destroys short-lived named
// caches doesn't leak slot table entries.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]int
	slots    []*entry
	occupied *bitset.BitSet
	guards   map[string]*guard
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byName:   make(map[string]int),
		occupied: bitset.New(0),
		guards:   make(map[string]*guard),
	}
}

// Create builds a new cache for name and registers it, or returns the
// failure guard's error if construction for this name has failed
// repeatedly and not yet reached its recovery timeout. It is an error
// to call Create twice for the same live name; Destroy first.
func (r *Registry) Create(name string, objSize int, opts ...slab.CacheOption) (*slab.Cache, error) {
	r.mu.Lock()
	if _, exists := r.byName[name]; exists {
		r.mu.Unlock()
		return nil, slab.ErrNameExists
	}

	idx, e := r.reserveSlot()
	r.byName[name] = idx

	g, ok := r.guards[name]
	if !ok {
		g = &guard{}
		r.guards[name] = g
	}
	r.mu.Unlock()

	now := time.Now()
	if g.open(now) {
		r.mu.Lock()
		delete(r.byName, name)
		r.releaseSlot(idx)
		r.mu.Unlock()
		return nil, slab.ErrCacheUnavailable
	}

	c, err := slab.Create(objSize, opts...)
	if err != nil {
		g.recordFailure(now)
		r.mu.Lock()
		delete(r.byName, name)
		r.releaseSlot(idx)
		r.mu.Unlock()
		return nil, err
	}

	g.recordSuccess()
	e.mu.Lock()
	e.cache = c
	e.mu.Unlock()
	return c, nil
}

// Lookup returns the cache registered under name, if any.
func (r *Registry) Lookup(name string) (*slab.Cache, bool) {
	r.mu.RLock()
	idx, ok := r.byName[name]
	if !ok {
		r.mu.RUnlock()
		return nil, false
	}
	e := r.slots[idx]
	r.mu.RUnlock()

	e.mu.Lock()
	c := e.cache
	e.mu.Unlock()
	return c, c != nil
}

// Destroy tears down and unregisters the cache under name. It fails
// if the underlying cache still has outstanding objects. The name
// becomes available for reuse on success.
func (r *Registry) Destroy(name string) error {
	r.mu.Lock()
	idx, ok := r.byName[name]
	if !ok {
		r.mu.Unlock()
		return slab.ErrNameNotFound
	}
	e := r.slots[idx]
	r.mu.Unlock()

	e.mu.Lock()
	c := e.cache
	e.mu.Unlock()

	if c != nil {
		if err := c.Destroy(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	delete(r.byName, name)
	r.releaseSlot(idx)
	r.mu.Unlock()
	return nil
}

// reserveSlot finds the lowest free slot index, growing the slot
// table and bitset if none is free, and marks it occupied. Caller
// must hold r.mu.
//
// A recycled index always gets a fresh *entry rather than having its
// old one reset in place: Lookup and Destroy read r.slots[idx] under
// r.mu and then lock e.mu only after releasing r.mu, so a slot that
// got recycled in that gap must not have its embedded mutex mutated
// out from under a goroutine that's about to (or already did) lock
// the old entry.
func (r *Registry) reserveSlot() (int, *entry) {
	idx, found := r.occupied.NextClear(0)
	if !found || int(idx) >= len(r.slots) {
		idx = uint(len(r.slots))
		r.slots = append(r.slots, &entry{})
	} else {
		r.slots[idx] = &entry{}
	}
	r.occupied.Set(idx)
	return int(idx), r.slots[idx]
}

// releaseSlot marks idx free for reuse. Caller must hold r.mu.
func (r *Registry) releaseSlot(idx int) {
	r.occupied.Clear(uint(idx))
}
