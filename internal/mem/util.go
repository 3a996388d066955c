// Package mem keeps secret pages out of swap.
//
// Lock and Unlock act on the whole process (mlockall). Pin and Unpin act on a
// single region and are what protected buffers use; both are best effort and
// callers treat their errors as warnings.
//
// Page locks do not nest, so a region that is pinned must not share a page
// with anything else. Alloc hands out such regions: whole pages mapped outside
// the Go heap and excluded from core dumps where the OS supports it.
package mem

import (
	"fmt"
	"os"
)

// ProtectionLevel indicates how well the process can protect memory
type ProtectionLevel int

const (
	ProtectionNone    ProtectionLevel = iota // No memory protection available
	ProtectionPartial                        // Some protection measures applied
	ProtectionFull                           // Full memory protection (locked memory)
)

func (p ProtectionLevel) String() string {
	switch p {
	case ProtectionNone:
		return "none"
	case ProtectionPartial:
		return "partial"
	case ProtectionFull:
		return "full"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// Lock attempts to prevent sensitive data from being swapped to disk
// Returns the protection level achieved and any error encountered
func Lock() (ProtectionLevel, error) {
	return lockMemoryPlatform()
}

// Unlock releases memory locks if they were applied
func Unlock() error {
	return unlockMemoryPlatform()
}

// Pin locks the pages backing b into physical memory.
func Pin(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return pinPlatform(b)
}

// Unpin releases a previous Pin.
func Unpin(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unpinPlatform(b)
}

// Pinner is the page-pinning primitive as seen by its consumers.
type Pinner interface {
	Pin(b []byte) error
	Unpin(b []byte) error
}

// PagePinner is the Pinner backed by the operating system.
type PagePinner struct{}

func (PagePinner) Pin(b []byte) error   { return Pin(b) }
func (PagePinner) Unpin(b []byte) error { return Unpin(b) }

// Alloc returns a zeroed region of at least n bytes that starts on a page
// boundary and owns every page it touches. Release it with Free.
func Alloc(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid allocation size %d", n)
	}
	return allocPlatform(roundToPage(n))
}

// Free zeroes and releases a region returned by Alloc.
func Free(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	for i := range b {
		b[i] = 0
	}
	return freePlatform(b)
}

func roundToPage(n int) int {
	page := os.Getpagesize()
	return (n + page - 1) / page * page
}

// Allocator is the region allocator as seen by its consumers.
type Allocator interface {
	Alloc(n int) ([]byte, error)
	Free(b []byte) error
}

// PageAllocator is the Allocator backed by the operating system.
type PageAllocator struct{}

func (PageAllocator) Alloc(n int) ([]byte, error) { return Alloc(n) }
func (PageAllocator) Free(b []byte) error          { return Free(b) }
