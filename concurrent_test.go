package slab

import (
	"sync"
	"testing"
	"unsafe"
)

// TestCrossGoroutineFreeUsesRemotePath allocates on one goroutine and
// frees on a different one, exercising the wait-free remote-freelist
// path. Scaled down from the 10,000,000-object cross-thread scenario to
// 20,000 objects so the run stays short.
func TestCrossGoroutineFreeUsesRemotePath(t *testing.T) {
	c, err := Create(48)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer c.Destroy()

	const count = 20000
	produced := make(chan unsafe.Pointer, count)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer close(produced)
		for i := 0; i < count; i++ {
			obj, err := c.Allocate()
			if err != nil {
				t.Errorf("Allocate: %v", err)
				return
			}
			produced <- obj
		}
	}()

	go func() {
		defer wg.Done()
		for obj := range produced {
			c.Free(obj)
		}
	}()

	wg.Wait()

	stats := c.Stats()
	if stats.Allocations != count || stats.Deallocations != count {
		t.Fatalf("stats = %+v, want %d allocations and %d deallocations", stats, count, count)
	}
	if stats.RemoteFrees == 0 {
		t.Fatal("expected at least one free to take the remote path when producer and consumer run on different goroutines")
	}
}

// TestManyGoroutinesAllocateAndFree exercises concurrent allocation and
// freeing from many goroutines against a shared cache,
// using random allocate/free interleaving per goroutine.
func TestManyGoroutinesAllocateAndFree(t *testing.T) {
	c, err := Create(40)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer c.Destroy()

	const numGoroutines = 16
	const numOps = 500

	var wg sync.WaitGroup
	for g := 0; g < numGoroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var held []unsafe.Pointer
			for i := 0; i < numOps; i++ {
				obj, err := c.Allocate()
				if err != nil {
					t.Errorf("Allocate: %v", err)
					return
				}
				*(*byte)(obj) = 0x42
				held = append(held, obj)
				if len(held) > 8 {
					c.Free(held[0])
					held = held[1:]
				}
			}
			for _, obj := range held {
				c.Free(obj)
			}
		}()
	}
	wg.Wait()

	stats := c.Stats()
	if stats.Allocations != stats.Deallocations {
		t.Fatalf("stats = %+v, allocations and deallocations must balance once every goroutine has cleaned up", stats)
	}
}

// TestHoardingReturnsSlabsToGlobalPool forces one goroutine-affine
// context to accumulate more than MaxLocalEmptySlabs empty slabs, then
// checks that some were returned to the global pool rather than held
// forever.
func TestHoardingReturnsSlabsToGlobalPool(t *testing.T) {
	c, err := Create(64)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer c.Destroy()

	// Fill more than MaxLocalEmptySlabs slabs before freeing anything, plus
	// one object past the last full slab so that slab gets retired off the
	// active slot — only a retired slab's frees can land it in ctx.empty;
	// frees against the still-active slab are a no-op transition. The
	// slabs must all be held at once: an emptied slab is taken back by the
	// next allocation, so alternating small alloc/free rounds never leaves
	// more than one empty slab behind.
	slabsHeld := int(MaxLocalEmptySlabs) + 2
	total := c.Capacity()*slabsHeld + 1

	objs, err := c.AllocateMany(total)
	if err != nil {
		t.Fatalf("AllocateMany(%d): %v", total, err)
	}
	if err := c.FreeMany(objs); err != nil {
		t.Fatalf("FreeMany: %v", err)
	}

	if c.Stats().HoardReturns == 0 {
		t.Fatal("expected hoarding to have returned at least one slab to the global pool")
	}
}
