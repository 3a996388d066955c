// Package memcrypt encrypts memory regions in place with a key that never
// leaves the current process.
//
// The key is 64 random bytes (AES-256-XTS) generated on first use and kept
// sealed in a memguard enclave between operations. Regions must be a
// multiple of misc.MemoryBlockSize. Data encrypted here cannot be decrypted
// by any other process, including a later run of the same binary.
package memcrypt

import (
	"crypto/aes"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/xts"

	tperrors "github.com/muhammetozeski/TPMPass/internal/errors"
	"github.com/muhammetozeski/TPMPass/internal/misc"
)

// Cipher is the in-place memory protection primitive. The tweak must be the
// same for the encrypt and decrypt of one region and should differ between
// regions.
type Cipher interface {
	EncryptInPlace(buf []byte, tweak uint64) error
	DecryptInPlace(buf []byte, tweak uint64) error
}

var (
	processOnce   sync.Once
	processCipher *XTSCipher
)

// Process returns the process-wide cipher.
func Process() *XTSCipher {
	processOnce.Do(func() {
		processCipher = &XTSCipher{key: memguard.NewEnclaveRandom(misc.MemoryKeySize)}
	})
	return processCipher
}

// XTSCipher implements Cipher with AES-256-XTS.
type XTSCipher struct {
	key *memguard.Enclave
}

// NewXTSCipher creates a cipher with its own random key. Tests use it to get
// an isolated key; everything else should use Process.
func NewXTSCipher() *XTSCipher {
	return &XTSCipher{key: memguard.NewEnclaveRandom(misc.MemoryKeySize)}
}

func (c *XTSCipher) EncryptInPlace(buf []byte, tweak uint64) error {
	return c.apply(buf, tweak, true)
}

func (c *XTSCipher) DecryptInPlace(buf []byte, tweak uint64) error {
	return c.apply(buf, tweak, false)
}

func (c *XTSCipher) apply(buf []byte, tweak uint64, encrypt bool) error {
	if len(buf) == 0 || len(buf)%misc.MemoryBlockSize != 0 {
		return fmt.Errorf("%w: region of %d bytes is not a multiple of %d",
			tperrors.ErrArgument, len(buf), misc.MemoryBlockSize)
	}

	keyBuf, err := c.key.Open()
	if err != nil {
		return fmt.Errorf("%w: failed to open memory key enclave: %v", tperrors.ErrCryptographic, err)
	}
	defer keyBuf.Destroy()

	x, err := xts.NewCipher(aes.NewCipher, keyBuf.Bytes())
	if err != nil {
		return fmt.Errorf("%w: failed to create memory cipher: %v", tperrors.ErrCryptographic, err)
	}

	if encrypt {
		x.Encrypt(buf, buf, tweak)
	} else {
		x.Decrypt(buf, buf, tweak)
	}
	return nil
}
