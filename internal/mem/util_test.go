package mem

import (
	"os"
	"testing"
	"unsafe"
)

func TestPinEmptyIsNoop(t *testing.T) {
	if err := Pin(nil); err != nil {
		t.Fatalf("Pin(nil) = %v", err)
	}
	if err := Unpin([]byte{}); err != nil {
		t.Fatalf("Unpin(empty) = %v", err)
	}
}

func TestPinUnpinBestEffort(t *testing.T) {
	b := make([]byte, 4096)
	// RLIMIT_MEMLOCK may be tiny in CI; only a successful pin must unpin cleanly
	if err := Pin(b); err != nil {
		t.Skipf("pinning unavailable: %v", err)
	}
	if err := Unpin(b); err != nil {
		t.Fatalf("Unpin after successful Pin: %v", err)
	}
}

func TestProtectionLevelString(t *testing.T) {
	for level, want := range map[ProtectionLevel]string{
		ProtectionNone:     "none",
		ProtectionPartial:  "partial",
		ProtectionFull:     "full",
		ProtectionLevel(9): "unknown(9)",
	} {
		if got := level.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(level), got, want)
		}
	}
}

func TestAllocOwnsWholePages(t *testing.T) {
	page := os.Getpagesize()

	a, err := Alloc(16)
	if err != nil {
		t.Fatalf("Alloc(16) = %v", err)
	}
	b, err := Alloc(page + 1)
	if err != nil {
		t.Fatalf("Alloc(%d) = %v", page+1, err)
	}

	if len(a) != page {
		t.Errorf("len(a) = %d, want %d", len(a), page)
	}
	if len(b) != 2*page {
		t.Errorf("len(b) = %d, want %d", len(b), 2*page)
	}

	startA := uintptr(unsafe.Pointer(&a[0]))
	startB := uintptr(unsafe.Pointer(&b[0]))
	if startA%uintptr(page) != 0 || startB%uintptr(page) != 0 {
		t.Fatalf("regions not page aligned: %#x %#x", startA, startB)
	}
	if startA < startB+uintptr(len(b)) && startB < startA+uintptr(len(a)) {
		t.Fatalf("regions overlap: %#x+%d and %#x+%d", startA, len(a), startB, len(b))
	}

	for _, v := range a {
		if v != 0 {
			t.Fatal("fresh region is not zeroed")
		}
	}
	a[0] = 0xFF

	if err := Free(a); err != nil {
		t.Fatalf("Free(a) = %v", err)
	}
	if err := Free(b); err != nil {
		t.Fatalf("Free(b) = %v", err)
	}
}

func TestAllocRejectsNonPositive(t *testing.T) {
	if _, err := Alloc(0); err == nil {
		t.Fatal("Alloc(0) succeeded")
	}
	if err := Free(nil); err != nil {
		t.Fatalf("Free(nil) = %v", err)
	}
}
