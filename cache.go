package slab

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Cache is the per-object-size allocation engine.
// One Cache serves exactly one rounded object size; create a separate
// Cache (directly, or through the registry package) per size or tag.
type Cache struct {
	geo geometry

	// globalEmpty and globalLock together implement the lock-protected
	// global pool. chunks is protected by the same lock.
	globalLock  sync.Mutex
	globalEmpty slabList
	chunks      []osChunk

	// contextSlots approximates thread-local context storage (see
	// context.go). Sized to a power of two so slot selection is a mask.
	contextSlots []contextSlot
	contextMask  uint64

	colorCursor atomic.Uint32

	ctor func(unsafe.Pointer)
	dtor func(unsafe.Pointer)

	logger *slog.Logger

	stats cacheStats

	destroyed atomic.Bool
}

type contextSlot struct {
	mu  sync.Mutex
	ctx *context
}

// Create builds a new Cache serving objects of at least size bytes.
// size must be positive; a non-positive size is a caller contract
// violation and panics.
func Create(size int, opts ...CacheOption) (*Cache, error) {
	if size <= 0 {
		panic(ErrInvalidObjectSize)
	}

	cfg := defaultCacheConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	headerSize := unsafe.Sizeof(Slab{})
	geo := computeGeometry(size, uintptr(cfg.cacheLine), uintptr(osPageSize()), headerSize)

	numSlots := uint32(roundUpPow2(uintptr(runtime.GOMAXPROCS(0))))
	c := &Cache{
		geo:          geo,
		contextSlots: make([]contextSlot, numSlots),
		contextMask:  uint64(numSlots) - 1,
		ctor:         cfg.ctor,
		dtor:         cfg.dtor,
		logger:       cfg.logger,
	}
	c.globalEmpty.init()

	return c, nil
}

// ObjectSize returns the rounded-up object size this cache serves.
func (c *Cache) ObjectSize() int { return int(c.geo.objSize) }

// SlabBytes returns the size of one slab, a power of two.
func (c *Cache) SlabBytes() int { return int(c.geo.slabBytes) }

// Capacity returns the number of objects that fit in one slab.
func (c *Cache) Capacity() int { return int(c.geo.capacity) }

// affinityID approximates a stable-enough identifier for "whoever is
// calling right now" without true OS-thread-local storage: it hashes a
// captured stack fragment. It is deliberately cheap, not precise —
// collisions are handled by contextSlot's mutex, not avoided.
func affinityID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	h := fnv.New64a()
	h.Write(buf[:n])
	return h.Sum64()
}

func (c *Cache) contextSlot() *contextSlot {
	idx := affinityID() & c.contextMask
	return &c.contextSlots[idx]
}

func (c *Cache) nextColor() int32 {
	if c.geo.colorCount <= 1 {
		return 0
	}
	n := c.colorCursor.Add(1)
	return int32(n % uint32(c.geo.colorCount))
}

// Allocate returns a pointer to a fresh object slot.
func (c *Cache) Allocate() (unsafe.Pointer, error) {
	slot := c.contextSlot()
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.ctx == nil {
		slot.ctx = newContext()
	}
	ctx := slot.ctx

	obj, err := c.allocateFrom(ctx)
	if err != nil {
		return nil, err
	}

	// A constructor paired with a destructor runs here, once per
	// allocation. A constructor with no destructor already ran once per
	// slot at slab init (colorAndInit/constructSlab in chunk.go) — obj
	// is already constructed, and the hook must not run again.
	if c.ctor != nil && c.dtor != nil {
		c.ctor(obj)
	}

	c.stats.allocations.Add(1)
	return obj, nil
}

// allocateFrom walks ctx's tiers in order — active slab, partial list,
// empty list, full-list scavenge, then the global pool — until it can
// hand back an object.
func (c *Cache) allocateFrom(ctx *context) (unsafe.Pointer, error) {
	for {
		// Step 1: fast path — pop from the active slab.
		if ctx.active != nil {
			if obj, ok := ctx.active.popLocal(); ok {
				return obj, nil
			}
			// Step 2: active drained; retire it to the full list.
			ctx.retireActive(&ctx.full)
		}

		// Step 3: pull a partial slab, reclaiming its remote list first
		// if its local list looks empty.
		if s := ctx.partial.popFront(); s != nil {
			if s.localExhausted() {
				s.drainRemote()
			}
			if !s.localExhausted() {
				ctx.promote(s)
				continue
			}
			// Reclamation yielded nothing; shouldn't normally happen
			// for a slab that was in the partial list, but fall through
			// to scavenging rather than leaking the slab.
			ctx.full.pushBack(s)
		}

		// Step 4: pull an empty slab.
		if s := ctx.empty.popFront(); s != nil {
			ctx.emptyCount--
			ctx.promote(s)
			continue
		}

		// Step 5: scavenge the full list for remote-freed objects.
		if ctx.scavengeCooldown > 0 {
			ctx.scavengeCooldown--
		} else {
			found := ctx.full.walkFromTail(scavengeWalkBound, func(s *Slab) bool {
				return s.hasRemoteWork()
			})
			if found != nil {
				ctx.full.remove(found)
				found.drainRemote()
				ctx.promote(found)
				continue
			}
			ctx.scavengeCooldown = scavengeCooldown
		}

		// Step 6: fetch from the global pool, acquiring a fresh chunk if
		// the pool itself is empty.
		s, err := c.takeGlobalOrRefill()
		if err != nil {
			return nil, err
		}
		ctx.promote(s)
	}
}

// takeGlobalOrRefill pops a slab from globalEmpty under the global lock,
// acquiring a fresh OS chunk first if the pool is exhausted.
func (c *Cache) takeGlobalOrRefill() (*Slab, error) {
	c.globalLock.Lock()
	defer c.globalLock.Unlock()

	if s := c.globalEmpty.popFront(); s != nil {
		return s, nil
	}

	n, err := c.acquireChunk(&c.globalEmpty)
	if err != nil {
		c.stats.allocationErrors.Add(1)
		return nil, fmt.Errorf("slab: chunk acquisition failed: %w: %w", ErrOutOfMemory, err)
	}
	c.stats.chunksAcquired.Add(1)
	if c.logger != nil {
		c.logger.Info("slab: acquired chunk", slog.Int("slabs", n), slog.Int("obj_size", int(c.geo.objSize)))
	}

	s := c.globalEmpty.popFront()
	if s == nil {
		// Unreachable unless acquireChunk produced zero slabs.
		return nil, ErrOutOfMemory
	}
	return s, nil
}

// Free returns obj to the pool.
func (c *Cache) Free(obj unsafe.Pointer) {
	// The destructor's invocation policy is asymmetric with the
	// constructor's: a destructor set without a constructor still runs
	// on every Free (the caller owns construction in that configuration,
	// but finalization is still the cache's job).
	if c.dtor != nil {
		c.dtor(obj)
	}

	s := objectSlab(obj, c.geo.slabBytes)

	slot := c.contextSlot()
	slot.mu.Lock()
	ctx := slot.ctx
	if ctx != nil && s.owner.Load() == ctx {
		c.freeLocal(ctx, s, obj)
		slot.mu.Unlock()
		c.stats.deallocations.Add(1)
		return
	}
	slot.mu.Unlock()

	// Foreign free: CAS-push onto the owning slab's remote stack. The
	// owner reclaims and adjusts activeCount on its next local miss.
	s.pushRemote(obj)
	c.stats.deallocations.Add(1)
	c.stats.remoteFrees.Add(1)
}

// freeLocal handles a free issued by the slab's current owner.
func (c *Cache) freeLocal(ctx *context, s *Slab, obj unsafe.Pointer) {
	wasFull := s.full()
	s.pushLocal(obj)

	if s == ctx.active {
		return
	}

	if wasFull && s.activeCount == s.capacity-1 {
		ctx.full.remove(s)
		ctx.partial.pushBack(s)
		return
	}

	if s.activeCount == 0 {
		if wasFull {
			ctx.full.remove(s)
		} else {
			ctx.partial.remove(s)
		}
		ctx.empty.pushBack(s)
		ctx.emptyCount++

		if ctx.emptyCount > MaxLocalEmptySlabs {
			c.hoard(ctx)
		}
	}
}

// hoard returns half of ctx's local empty slabs to the global pool,
// once a context has accumulated more than it's worth holding onto.
func (c *Cache) hoard(ctx *context) {
	toReturn := ctx.emptyCount / 2
	if toReturn < 1 {
		return
	}

	var batch []*Slab
	for i := int32(0); i < toReturn; i++ {
		s := ctx.empty.popFront()
		if s == nil {
			break
		}
		s.owner.Store(nil)
		batch = append(batch, s)
		ctx.emptyCount--
	}

	c.globalLock.Lock()
	for _, s := range batch {
		c.globalEmpty.pushBack(s)
	}
	c.globalLock.Unlock()

	c.stats.hoardReturns.Add(uint64(len(batch)))
	if c.logger != nil {
		c.logger.Debug("slab: returned local empty slabs to global pool", slog.Int("count", len(batch)))
	}
}

// AllocateMany allocates count objects, preserving single-operation
// semantics per object. Constructor hooks, when present,
// run in slot-iteration order — one call per object, never batched.
func (c *Cache) AllocateMany(count int) ([]unsafe.Pointer, error) {
	if count <= 0 {
		return nil, ErrInvalidBatchSize
	}
	out := make([]unsafe.Pointer, count)
	for i := 0; i < count; i++ {
		obj, err := c.Allocate()
		if err != nil {
			for j := 0; j < i; j++ {
				c.Free(out[j])
			}
			return nil, err
		}
		out[i] = obj
	}
	return out, nil
}

// FreeMany frees every pointer in objs, in order.
func (c *Cache) FreeMany(objs []unsafe.Pointer) error {
	if len(objs) == 0 {
		return ErrInvalidBatchSize
	}
	for _, obj := range objs {
		c.Free(obj)
	}
	return nil
}

// Destroy releases all backing memory. Must be called with no
// outstanding objects.
func (c *Cache) Destroy() error {
	if !c.destroyed.CompareAndSwap(false, true) {
		return nil
	}

	c.globalLock.Lock()
	defer c.globalLock.Unlock()

	for i := range c.contextSlots {
		slot := &c.contextSlots[i]
		slot.mu.Lock()
		if slot.ctx != nil {
			if slot.ctx.active != nil {
				slot.ctx.active.drainRemote()
			}
			if slot.ctx.active != nil && slot.ctx.active.activeCount != 0 {
				slot.mu.Unlock()
				c.destroyed.Store(false)
				return ErrDestroyNotEmpty
			}
			if !allClear(&slot.ctx.partial) || !allClear(&slot.ctx.full) {
				slot.mu.Unlock()
				c.destroyed.Store(false)
				return ErrDestroyNotEmpty
			}
		}
		slot.mu.Unlock()
	}

	return c.releaseAllChunks()
}

// allClear reports whether every slab remaining in l has activeCount 0,
// once frees queued on its remote list have been drained.
func allClear(l *slabList) bool {
	n := l.sentinel.next
	for n != &l.sentinel {
		n.drainRemote()
		if n.activeCount != 0 {
			return false
		}
		n = n.next
	}
	return true
}
