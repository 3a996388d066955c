package tpmpass

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/muhammetozeski/TPMPass/identity"
	"github.com/muhammetozeski/TPMPass/internal/crypto"
	"github.com/muhammetozeski/TPMPass/internal/misc"
)

// Deriver turns the master identity and a per-file salt into a file key.
//
// The key is SHA-256(constant ‖ identity ‖ salt) where constant is a fixed
// 16-byte value compiled into the binary. A single hash is enough because
// the identity already carries 256 bits of entropy; there is no human
// secret to stretch. The constant separates these keys from any other use of
// the same identity, the salt separates files from each other.
type Deriver struct {
	identity *identity.Store
	rand     io.Reader
}

// NewDeriver uses rand for salts, or crypto/rand when rand is nil.
func NewDeriver(id *identity.Store, rand io.Reader) *Deriver {
	return &Deriver{identity: id, rand: rand}
}

// DeriveKey returns the 32-byte key for salt. The caller must wipe it as
// soon as it has been used.
//
// Returns:
//   - ErrArgument if salt is not 32 bytes
//   - ErrNotInitialized if the master identity has not been loaded
//   - ErrCryptographic if the hash produced an unexpected length
func (d *Deriver) DeriveKey(salt []byte) ([]byte, error) {
	if len(salt) != misc.SaltSize {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d", ErrArgument, misc.SaltSize, len(salt))
	}

	return identity.WithIdentity(d.identity, func(id []byte) ([]byte, error) {
		material := make([]byte, 0, misc.ConstantSize+len(id)+len(salt))
		material = append(material, misc.DerivationConstant()...)
		material = append(material, id...)
		material = append(material, salt...)
		defer crypto.Wipe(material)

		h := sha256.New()
		h.Write(material)
		key := h.Sum(make([]byte, 0, misc.DerivedKeySize))
		if len(key) != misc.DerivedKeySize {
			crypto.Wipe(key)
			return nil, fmt.Errorf("%w: hash produced %d bytes", ErrCryptographic, len(key))
		}
		return key, nil
	})
}

// GenerateFileSalt returns 32 fresh random bytes.
func (d *Deriver) GenerateFileSalt() ([]byte, error) {
	salt, err := crypto.RandomBytes(d.rand, misc.SaltSize)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate file salt: %v", ErrCryptographic, err)
	}
	return salt, nil
}
