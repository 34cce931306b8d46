package slab

import "unsafe"

// osChunk records one OS mapping backing pagesPerChunk slabs, kept only
// for final reclaim.
type osChunk struct {
	base uintptr
	size int
}

// acquireChunk obtains a fresh mapping from the OS, carves it into
// slabBytes-aligned slabs, and links each usable slab into dst. It
// returns the number of slabs produced.
func (c *Cache) acquireChunk(dst *slabList) (int, error) {
	slabBytes := c.geo.slabBytes
	count := c.geo.pagesPerChunk
	mapSize := int(slabBytes)*int(count) + int(slabBytes)

	raw, err := mmapChunk(mapSize)
	if err != nil {
		return 0, err
	}

	base := uintptr(unsafe.Pointer(&raw[0]))
	wasAligned := base%slabBytes == 0

	// Reserve at least one pointer-sized word below the first usable
	// slab for the original base pointer, then align up — this always
	// leaves room for the word even when the OS already returned a
	// slab-aligned address.
	shifted := base + ptrSize
	aligned := alignUp(shifted, slabBytes)
	*(*unsafe.Pointer)(unsafe.Pointer(aligned - ptrSize)) = unsafe.Pointer(&raw[0])

	c.chunks = append(c.chunks, osChunk{base: base, size: mapSize})

	for i := int32(0); i < count; i++ {
		addr := aligned + uintptr(i)*slabBytes
		s := (*Slab)(unsafe.Pointer(addr))
		*s = Slab{}
		s.cache = c
		s.capacity = c.geo.capacity
		if wasAligned {
			s.flags |= flagAligned
		}
		if i == 0 {
			s.flags |= flagChunkFront
		}
		c.colorAndInit(s)
		dst.pushBack(s)
	}

	return int(count), nil
}

// colorAndInit assigns this slab's cache-coloring offset; for a
// constructor-only cache it runs the constructor once over every slot
// now, since a ctor with no paired dtor never runs again on allocate;
// and then it chains the object freelist. Chaining comes last so the
// constructor cannot overwrite the freelist links; in exchange, the
// first pointer-sized word of every free slot holds its link rather
// than whatever the constructor wrote there.
func (c *Cache) colorAndInit(s *Slab) {
	idx := c.nextColor()
	s.colorIndex = idx
	offset := c.geo.metadataPadded + uintptr(idx)*c.geo.colorStride
	s.mem = unsafe.Pointer(uintptr(unsafe.Pointer(s)) + offset)

	if c.ctor != nil && c.dtor == nil {
		c.constructSlab(s)
	}
	s.initFreelist(c.geo.objSize)
}

// constructSlab runs the cache's constructor once over every object
// slot in s, in slot order. Only called for a constructor-only cache,
// at slab initialization — objects are handed out by Allocate already
// constructed, and the constructor never runs again for their lifetime.
// The first pointer-sized word of each slot is not preserved: it carries
// the freelist link whenever the slot is free.
func (c *Cache) constructSlab(s *Slab) {
	base := uintptr(s.mem)
	objSize := c.geo.objSize
	for i := int32(0); i < s.capacity; i++ {
		c.ctor(unsafe.Pointer(base + uintptr(i)*objSize))
	}
}

// releaseAllChunks unmaps every chunk ever acquired by this cache. Called
// only from Destroy, with the global lock held and no outstanding
// allocations.
func (c *Cache) releaseAllChunks() error {
	for _, ch := range c.chunks {
		if err := munmapChunk(unsafe.Pointer(ch.base), ch.size); err != nil {
			return err
		}
	}
	c.chunks = nil
	return nil
}
