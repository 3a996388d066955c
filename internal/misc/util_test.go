package misc

import (
	"fmt"
	"os"
	"testing"
)

func TestPadToBlock(t *testing.T) {
	cases := map[int]int{0: 16, 1: 16, 15: 16, 16: 16, 17: 32, 32: 32, 33: 48}
	for in, want := range cases {
		if got := PadToBlock(in); got != want {
			t.Errorf("PadToBlock(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestIsNotFoundError(t *testing.T) {
	_, err := os.Stat("/definitely/not/here")
	if !IsNotFoundError(err) {
		t.Errorf("stat error should be a not-found error")
	}
	if !IsNotFoundError(fmt.Errorf("load: %w", os.ErrNotExist)) {
		t.Errorf("wrapped ErrNotExist should be a not-found error")
	}
	if IsNotFoundError(nil) || IsNotFoundError(fmt.Errorf("permission denied")) {
		t.Errorf("unexpected not-found match")
	}
}

func TestConstantsAreCopies(t *testing.T) {
	c := DerivationConstant()
	c[0] ^= 0xff
	if DerivationConstant()[0] == c[0] {
		t.Fatal("DerivationConstant must return a copy")
	}
	if len(IdentityEntropy()) != ConstantSize {
		t.Fatal("identity entropy has the wrong size")
	}
}
