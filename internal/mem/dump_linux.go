//go:build linux

package mem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func excludeFromDump(b []byte) error {
	if err := unix.Madvise(b, unix.MADV_DONTDUMP); err != nil {
		return fmt.Errorf("madvise DONTDUMP: %w", err)
	}
	return nil
}
