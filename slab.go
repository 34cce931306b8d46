package slab

import (
	"sync/atomic"
	"unsafe"
)

// slab flag bits.
const (
	flagAligned    uint32 = 1 << 0
	flagChunkFront uint32 = 1 << 1
)

// Slab is the fixed-size metadata header placed at the base of every
// page-multiple slab region. For slabs carved out of an mmap'd chunk,
// a *Slab is obtained by casting the chunk's base address
// (plus per-slab offset) to *Slab — the header physically occupies the
// first bytes of the region it describes, which is what makes the
// address-mask lookup in objectSlab work. List sentinels use an ordinary
// heap-allocated Slab value; only the prev/next fields are meaningful for
// those.
type Slab struct {
	// prev, next are the circular-list pointers. Invariant: on every list
	// membership, prev.next == self && next.prev == self.
	prev, next *Slab

	// cache is the owning Cache, set when the slab is carved from a
	// chunk. The allocate and free paths take geometry from the Cache
	// they are called on and do not read this field.
	cache *Cache

	// owner is the context currently holding this slab — set for as long
	// as the slab sits in that context's active slot or local lists, and
	// cleared only when the slab returns to the global pool. It is read
	// by foreign frees without any lock, so access goes through atomics
	// even though writes are single-writer (the owning context).
	owner atomic.Pointer[context]

	// mem is the address of the first object slot, offset from the end
	// of this header by the slab's color stride.
	mem unsafe.Pointer

	// localHead is the owner-private freelist, threaded through free
	// object memory. nil means locally exhausted (remote may still hold
	// returned objects).
	localHead unsafe.Pointer

	// remoteHead is the atomic head of the foreign-thread-return LIFO,
	// also threaded through object memory.
	remoteHead unsafe.Pointer

	// activeCount is the number of currently allocated objects. Single
	// writer (owner) except for the decrement applied after draining
	// remoteHead, which the owner also performs.
	activeCount int32

	// capacity is the number of object slots in this slab.
	capacity int32

	// colorIndex is this slab's coloring slot, recorded for diagnostics.
	colorIndex int32

	flags uint32
}

func (s *Slab) isAligned() bool    { return s.flags&flagAligned != 0 }
func (s *Slab) isChunkFront() bool { return s.flags&flagChunkFront != 0 }

// addr returns this slab header's own address, which for a chunk-backed
// slab is also the slab-region base address used by the address-mask
// lookup.
func (s *Slab) addr() uintptr {
	return uintptr(unsafe.Pointer(s))
}

// full reports whether every slot is counted as allocated
// (activeCount == capacity). Frees still queued on remoteHead are not
// counted until the owner drains them.
func (s *Slab) full() bool {
	return s.activeCount == s.capacity
}

// localExhausted reports whether the owner-private freelist is empty
// (localHead nil); remoteHead may still be non-nil and must be drained
// before this is trusted as "no free objects at all".
func (s *Slab) localExhausted() bool {
	return s.localHead == nil
}

// initFreelist chains capacity objects of size objSize starting at mem in
// order and sets localHead to the first one.
func (s *Slab) initFreelist(objSize uintptr) {
	if s.capacity == 0 {
		s.localHead = nil
		return
	}
	base := uintptr(s.mem)
	var prev unsafe.Pointer
	for i := int32(s.capacity - 1); i >= 0; i-- {
		cur := unsafe.Pointer(base + uintptr(i)*objSize)
		*(*unsafe.Pointer)(cur) = prev
		prev = cur
	}
	s.localHead = prev
}

// popLocal pops the head of the owner-private freelist. Caller must only
// call this on the owner goroutine-context.
func (s *Slab) popLocal() (unsafe.Pointer, bool) {
	if s.localHead == nil {
		return nil, false
	}
	obj := s.localHead
	s.localHead = *(*unsafe.Pointer)(obj)
	s.activeCount++
	return obj, true
}

// pushLocal pushes obj back onto the owner-private freelist. Caller must
// only call this on the owner goroutine-context.
func (s *Slab) pushLocal(obj unsafe.Pointer) {
	*(*unsafe.Pointer)(obj) = s.localHead
	s.localHead = obj
	s.activeCount--
}

// pushRemote is the wait-free cross-context free path: a release CAS
// loop bounded only by contention on this one slab.
func (s *Slab) pushRemote(obj unsafe.Pointer) {
	for {
		old := atomic.LoadPointer(&s.remoteHead)
		*(*unsafe.Pointer)(obj) = old
		if atomic.CompareAndSwapPointer(&s.remoteHead, old, obj) {
			return
		}
	}
}

// drainRemote performs an acquire exchange of remoteHead, splices the
// returned chain onto localHead, and adjusts activeCount by the chain
// length. Returns the number of objects reclaimed. Must only be called by
// the owner.
func (s *Slab) drainRemote() int {
	chain := atomic.SwapPointer(&s.remoteHead, nil)
	if chain == nil {
		return 0
	}
	count := 1
	tail := chain
	for {
		next := *(*unsafe.Pointer)(tail)
		if next == nil {
			break
		}
		tail = next
		count++
	}
	*(*unsafe.Pointer)(tail) = s.localHead
	s.localHead = chain
	s.activeCount -= int32(count)
	return count
}

// hasRemoteWork reports whether a foreign thread has queued any frees
// that haven't been drained yet, without consuming them.
func (s *Slab) hasRemoteWork() bool {
	return atomic.LoadPointer(&s.remoteHead) != nil
}

// objectSlab recovers the owning slab header from any object pointer
// ever returned by Allocate, by masking off the low slabBytes-1 bits.
// slabBytes must be a power of two and every slab must begin on a
// slabBytes boundary for this to be valid.
func objectSlab(obj unsafe.Pointer, slabBytes uintptr) *Slab {
	mask := ^(slabBytes - 1)
	base := uintptr(obj) & mask
	return (*Slab)(unsafe.Pointer(base))
}
