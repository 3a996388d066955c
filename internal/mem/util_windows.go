//go:build windows

package mem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

func lockMemoryPlatform() (ProtectionLevel, error) {
	// No process-wide equivalent of mlockall; buffers are pinned one by one
	return ProtectionPartial, nil
}

func unlockMemoryPlatform() error {
	return nil
}

func pinPlatform(b []byte) error {
	if err := windows.VirtualLock(uintptr(unsafe.Pointer(&b[0])), uintptr(len(b))); err != nil {
		return fmt.Errorf("VirtualLock %d bytes: %w", len(b), err)
	}
	return nil
}

func unpinPlatform(b []byte) error {
	if err := windows.VirtualUnlock(uintptr(unsafe.Pointer(&b[0])), uintptr(len(b))); err != nil {
		return fmt.Errorf("VirtualUnlock %d bytes: %w", len(b), err)
	}
	return nil
}

func allocPlatform(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("VirtualAlloc %d bytes: %w", size, err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func freePlatform(b []byte) error {
	if err := windows.VirtualFree(uintptr(unsafe.Pointer(&b[0])), 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("VirtualFree %d bytes: %w", len(b), err)
	}
	return nil
}
