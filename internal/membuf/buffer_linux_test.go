package membuf

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockedKB returns the Locked: figure of the mapping that contains addr.
func lockedKB(t *testing.T, addr uintptr) int {
	t.Helper()
	f, err := os.Open("/proc/self/smaps")
	require.NoError(t, err)
	defer f.Close()

	inside := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) > 0 && strings.Contains(fields[0], "-") && !strings.HasSuffix(fields[0], ":") {
			var lo, hi uintptr
			if _, err := fmt.Sscanf(fields[0], "%x-%x", &lo, &hi); err == nil {
				inside = addr >= lo && addr < hi
			}
			continue
		}
		if inside && len(fields) >= 2 && fields[0] == "Locked:" {
			kb, err := strconv.Atoi(fields[1])
			require.NoError(t, err)
			return kb
		}
	}
	require.NoError(t, sc.Err())
	t.Fatalf("no mapping contains %#x", addr)
	return 0
}

func TestDisposeKeepsOtherBufferLocked(t *testing.T) {
	a, err := New([]byte("stays pinned"))
	require.NoError(t, err)
	defer a.Dispose()
	if !a.Pinned() {
		t.Skip("mlock unavailable under this RLIMIT_MEMLOCK")
	}
	b, err := New([]byte("goes away"))
	require.NoError(t, err)

	addr := uintptr(unsafe.Pointer(&a.Region()[0]))
	require.Positive(t, lockedKB(t, addr))

	b.Dispose()

	assert.Positive(t, lockedKB(t, addr), "disposing one buffer must not unlock another")
	assert.True(t, a.Pinned())
}
