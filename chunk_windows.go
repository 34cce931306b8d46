//go:build windows

package slab

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// osPageSize resolves OS_PAGE_SIZE once at startup. Windows doesn't
// expose a getpagesize() equivalent in golang.org/x/sys/windows; 4096 is
// the page size on every Windows architecture this module targets.
func osPageSize() int {
	return 4096
}

// mmapChunk requests an anonymous, private, read+write mapping of size
// bytes via VirtualAlloc.
func mmapChunk(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

// munmapChunk releases a mapping previously returned by mmapChunk.
func munmapChunk(base unsafe.Pointer, size int) error {
	return windows.VirtualFree(uintptr(base), 0, windows.MEM_RELEASE)
}
