//go:build unix

package slab

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// osPageSize resolves OS_PAGE_SIZE once at startup.
func osPageSize() int {
	return unix.Getpagesize()
}

// mmapChunk requests an anonymous, private, read+write mapping of size
// bytes.
func mmapChunk(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

// munmapChunk releases a mapping previously returned by mmapChunk.
func munmapChunk(base unsafe.Pointer, size int) error {
	data := unsafe.Slice((*byte)(base), size)
	return unix.Munmap(data)
}
