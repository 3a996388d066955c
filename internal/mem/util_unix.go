//go:build linux || darwin || freebsd || openbsd || netbsd || dragonfly

package mem

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

func lockMemoryPlatform() (ProtectionLevel, error) {
	err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE)
	if err != nil {
		if errors.Is(err, unix.EPERM) || errors.Is(err, unix.ENOMEM) {
			// RLIMIT_MEMLOCK too small; individual buffers are still pinned
			return ProtectionPartial, nil
		} else if errors.Is(err, unix.ENOSYS) {
			return ProtectionPartial, nil
		}
		return ProtectionNone, fmt.Errorf("failed to lock memory: %w", err)
	}
	return ProtectionFull, nil
}

func unlockMemoryPlatform() error {
	if err := unix.Munlockall(); err != nil {
		return fmt.Errorf("failed to unlock memory: %w", err)
	}
	return nil
}

func pinPlatform(b []byte) error {
	if err := unix.Mlock(b); err != nil {
		return fmt.Errorf("mlock %d bytes: %w", len(b), err)
	}
	return nil
}

func unpinPlatform(b []byte) error {
	if err := unix.Munlock(b); err != nil {
		return fmt.Errorf("munlock %d bytes: %w", len(b), err)
	}
	return nil
}

func allocPlatform(size int) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}
	if err := excludeFromDump(b); err != nil {
		_ = unix.Munmap(b)
		return nil, err
	}
	return b, nil
}

func freePlatform(b []byte) error {
	if err := unix.Munmap(b); err != nil {
		return fmt.Errorf("munmap %d bytes: %w", len(b), err)
	}
	return nil
}
