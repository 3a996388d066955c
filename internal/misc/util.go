package misc

import (
	"errors"
	"io/fs"
	"strings"
)

func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "does not exist") ||
		strings.Contains(errStr, "no such file")
}

// PadToBlock rounds n up to the next multiple of MemoryBlockSize.
// Zero still gets one block.
func PadToBlock(n int) int {
	if n <= 0 {
		return MemoryBlockSize
	}
	return (n + MemoryBlockSize - 1) / MemoryBlockSize * MemoryBlockSize
}
