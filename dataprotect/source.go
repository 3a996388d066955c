package dataprotect

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"

	"github.com/muhammetozeski/TPMPass/internal/crypto"
	tperrors "github.com/muhammetozeski/TPMPass/internal/errors"
	"github.com/muhammetozeski/TPMPass/internal/misc"
	"github.com/muhammetozeski/TPMPass/persist"
)

// SecretSource stores the per-user profile secret.
type SecretSource interface {
	// Load returns the secret, or an error wrapping errors.ErrNotFound.
	Load() ([]byte, error)
	Store(secret []byte) error
	Describe() string
}

// LoadOrCreateSecret returns the stored profile secret, generating and
// storing a fresh one when none exists. A malformed stored secret is an
// error; replacing it would silently orphan everything protected under it.
func LoadOrCreateSecret(src SecretSource, rand io.Reader) ([]byte, error) {
	secret, err := src.Load()
	if err == nil {
		if len(secret) != misc.IdentitySize {
			crypto.Wipe(secret)
			return nil, fmt.Errorf("%w: profile secret in %s has the wrong size", tperrors.ErrInvalidData, src.Describe())
		}
		return secret, nil
	}
	if !errors.Is(err, tperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to load profile secret from %s: %w", src.Describe(), err)
	}

	secret, err = crypto.RandomBytes(rand, misc.IdentitySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate profile secret: %w", err)
	}
	if err = src.Store(secret); err != nil {
		crypto.Wipe(secret)
		return nil, fmt.Errorf("failed to store profile secret in %s: %w", src.Describe(), err)
	}
	return secret, nil
}

// FileSecretSource keeps the secret in a 0600 file.
type FileSecretSource struct {
	Path string
}

func (f FileSecretSource) Load() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if misc.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", tperrors.ErrNotFound, f.Path)
		}
		return nil, err
	}
	return data, nil
}

func (f FileSecretSource) Store(secret []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), misc.DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Path, err)
	}
	return persist.WriteFile(f.Path, secret, misc.FilePermissions)
}

func (f FileSecretSource) Describe() string {
	return "file " + f.Path
}

// KeyringSecretSource keeps the secret in the OS keyring (Secret Service,
// KWallet, macOS Keychain or Windows Credential Manager).
type KeyringSecretSource struct {
	Ring keyring.Keyring
	Key  string
}

// DefaultKeyringKey is the item name used when KeyringSecretSource.Key is empty.
const DefaultKeyringKey = "profile-secret"

// OpenKeyring opens the system keyring for serviceName. The file backend is
// excluded because it would need its own passphrase.
func OpenKeyring(serviceName string) (keyring.Keyring, error) {
	return keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.KeychainBackend,
			keyring.WinCredBackend,
		},
		KeychainTrustApplication: true,
	})
}

func (k KeyringSecretSource) key() string {
	if k.Key == "" {
		return DefaultKeyringKey
	}
	return k.Key
}

func (k KeyringSecretSource) Load() ([]byte, error) {
	item, err := k.Ring.Get(k.key())
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: keyring item %s", tperrors.ErrNotFound, k.key())
		}
		return nil, err
	}
	// some backends hand out their internal slice; callers wipe what they get
	return append([]byte(nil), item.Data...), nil
}

func (k KeyringSecretSource) Store(secret []byte) error {
	return k.Ring.Set(keyring.Item{
		Key:         k.key(),
		Data:        append([]byte(nil), secret...),
		Label:       "TPMPass profile secret",
		Description: "Binds TPMPass identity files to this user",
	})
}

func (k KeyringSecretSource) Describe() string {
	return "keyring item " + k.key()
}
