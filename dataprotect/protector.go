// Package dataprotect binds data to the current user on the current machine.
//
// A UserScope seals bytes with XChaCha20-Poly1305 under a key derived by
// HKDF-SHA256 from three things: a 32-byte per-user profile secret, the
// caller's auxiliary entropy, and a scope string naming the machine and the
// user. Ciphertext produced for one user, machine, profile secret or entropy
// value does not open under any other. No passphrase is involved; whoever
// can read the profile secret as this user can unprotect.
//
// Blob layout:
//
//	offset 0      : format version (1)
//	offset 1..24  : nonce
//	offset 25..end: sealed data with a 16-byte tag, version byte as AAD
package dataprotect

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/muhammetozeski/TPMPass/internal/crypto"
	tperrors "github.com/muhammetozeski/TPMPass/internal/errors"
	"github.com/muhammetozeski/TPMPass/internal/misc"
)

// Protector is the user-scoped data protection primitive.
type Protector interface {
	// Protect seals plaintext. The same entropy must be supplied to Unprotect.
	Protect(plaintext, entropy []byte) ([]byte, error)

	// Unprotect opens a blob produced by Protect for the same user, machine
	// and entropy. Every failure wraps errors.ErrCryptographic.
	Unprotect(ciphertext, entropy []byte) ([]byte, error)
}

const infoPrefix = "tpmpass/dataprotect/v1"

const headerSize = 1 + chacha20poly1305.NonceSizeX

// UserScope implements Protector.
type UserScope struct {
	secret *memguard.Enclave
	scope  []byte
	rand   io.Reader
}

// Option configures a UserScope.
type Option func(*UserScope)

// WithScope overrides the machine/user binding. Tests use it to simulate
// another machine.
func WithScope(scope []byte) Option {
	return func(u *UserScope) { u.scope = append([]byte(nil), scope...) }
}

// WithRandom sets the nonce source.
func WithRandom(r io.Reader) Option {
	return func(u *UserScope) { u.rand = r }
}

// NewUserScope loads the profile secret from src, creating and storing one
// on first use.
func NewUserScope(src SecretSource, opts ...Option) (*UserScope, error) {
	secret, err := LoadOrCreateSecret(src, nil)
	if err != nil {
		return nil, err
	}
	return FromSecret(secret, opts...)
}

// FromSecret builds a UserScope around an existing profile secret. The
// secret slice is moved into an enclave and wiped.
func FromSecret(secret []byte, opts ...Option) (*UserScope, error) {
	if len(secret) != misc.IdentitySize {
		crypto.Wipe(secret)
		return nil, fmt.Errorf("%w: profile secret must be %d bytes", tperrors.ErrInvalidData, misc.IdentitySize)
	}

	u := &UserScope{
		secret: memguard.NewEnclave(secret),
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.scope == nil {
		u.scope = CurrentScope()
	}
	return u, nil
}

func (u *UserScope) deriveKey(entropy []byte) ([]byte, error) {
	lb, err := u.secret.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open profile secret: %v", tperrors.ErrCryptographic, err)
	}
	defer lb.Destroy()

	info := make([]byte, 0, len(infoPrefix)+len(u.scope))
	info = append(info, infoPrefix...)
	info = append(info, u.scope...)

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, lb.Bytes(), entropy, info), key); err != nil {
		return nil, fmt.Errorf("%w: key derivation failed: %v", tperrors.ErrCryptographic, err)
	}
	return key, nil
}

func (u *UserScope) Protect(plaintext, entropy []byte) ([]byte, error) {
	key, err := u.deriveKey(entropy)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create cipher: %v", tperrors.ErrCryptographic, err)
	}

	nonce, err := crypto.RandomBytes(u.rand, aead.NonceSize())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tperrors.ErrCryptographic, err)
	}

	out := make([]byte, headerSize, headerSize+len(plaintext)+aead.Overhead())
	out[0] = misc.DefaultFormatVersion
	copy(out[1:], nonce)

	return aead.Seal(out, nonce, plaintext, out[:1]), nil
}

func (u *UserScope) Unprotect(ciphertext, entropy []byte) ([]byte, error) {
	if len(ciphertext) < headerSize+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: protected data too short", tperrors.ErrCryptographic)
	}
	if ciphertext[0] != misc.DefaultFormatVersion {
		return nil, fmt.Errorf("%w: unsupported protected data version %d", tperrors.ErrCryptographic, ciphertext[0])
	}

	key, err := u.deriveKey(entropy)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create cipher: %v", tperrors.ErrCryptographic, err)
	}

	plaintext, err := aead.Open(nil, ciphertext[1:headerSize], ciphertext[headerSize:], ciphertext[:1])
	if err != nil {
		// wrong user, machine, entropy or tampered data all look the same here
		return nil, fmt.Errorf("%w: authentication failed", tperrors.ErrCryptographic)
	}
	return plaintext, nil
}
