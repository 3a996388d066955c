//go:build !linux && !darwin && !freebsd && !openbsd && !netbsd && !dragonfly && !windows

package mem

import "errors"

var errUnsupported = errors.New("page locking not supported on this platform")

func lockMemoryPlatform() (ProtectionLevel, error) {
	// Secrets are still encrypted and zeroed, but can't be kept out of swap
	return ProtectionPartial, nil
}

func unlockMemoryPlatform() error {
	return nil
}

func pinPlatform(b []byte) error   { return errUnsupported }
func unpinPlatform(b []byte) error { return nil }

func allocPlatform(size int) ([]byte, error) { return make([]byte, size), nil }
func freePlatform(b []byte) error            { return nil }
