package dataprotect

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tperrors "github.com/muhammetozeski/TPMPass/internal/errors"
)

func newScope(t *testing.T, fill byte, opts ...Option) *UserScope {
	t.Helper()
	u, err := FromSecret(bytes.Repeat([]byte{fill}, 32), opts...)
	require.NoError(t, err)
	return u
}

func TestProtectRoundTrip(t *testing.T) {
	u := newScope(t, 1)
	entropy := []byte("0123456789abcdef")

	blob, err := u.Protect([]byte("hunter2"), entropy)
	require.NoError(t, err)
	assert.Equal(t, byte(1), blob[0])
	assert.Len(t, blob, 1+24+7+16)
	assert.False(t, bytes.Contains(blob, []byte("hunter2")))

	plain, err := u.Unprotect(blob, entropy)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(plain))
}

func TestProtectIsRandomized(t *testing.T) {
	u := newScope(t, 1)
	a, err := u.Protect([]byte("same"), nil)
	require.NoError(t, err)
	b, err := u.Protect([]byte("same"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestUnprotectFailures(t *testing.T) {
	u := newScope(t, 1, WithScope([]byte("machine-a/uid-1000")))
	entropy := []byte("entropy")
	blob, err := u.Protect([]byte("payload"), entropy)
	require.NoError(t, err)

	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)-1] ^= 0x01

	badVersion := append([]byte(nil), blob...)
	badVersion[0] = 9

	cases := map[string]struct {
		p    Protector
		blob []byte
		ent  []byte
	}{
		"wrong entropy":        {u, blob, []byte("other")},
		"tampered":             {u, tampered, entropy},
		"truncated":            {u, blob[:20], entropy},
		"unknown version":      {u, badVersion, entropy},
		"other profile secret": {newScope(t, 2, WithScope([]byte("machine-a/uid-1000"))), blob, entropy},
		"other machine":        {newScope(t, 1, WithScope([]byte("machine-b/uid-1000"))), blob, entropy},
		"other user":           {newScope(t, 1, WithScope([]byte("machine-a/uid-1001"))), blob, entropy},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tc.p.Unprotect(tc.blob, tc.ent)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tperrors.ErrCryptographic), "got %v", err)
		})
	}
}

func TestFromSecretWrongSize(t *testing.T) {
	secret := []byte{1, 2, 3}
	_, err := FromSecret(secret)
	assert.True(t, errors.Is(err, tperrors.ErrInvalidData))
	assert.Equal(t, []byte{0, 0, 0}, secret, "rejected secret is wiped")
}

func TestCurrentScopeIsStable(t *testing.T) {
	assert.Equal(t, CurrentScope(), CurrentScope())
	assert.NotEmpty(t, CurrentScope())
}

func TestFileSecretSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profile.key")
	src := FileSecretSource{Path: path}

	_, err := src.Load()
	assert.True(t, errors.Is(err, tperrors.ErrNotFound))

	first, err := LoadOrCreateSecret(src, nil)
	require.NoError(t, err)
	assert.Len(t, first, 32)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	again, err := LoadOrCreateSecret(src, nil)
	require.NoError(t, err)
	assert.Equal(t, first, again, "existing secret is reused")

	require.NoError(t, os.WriteFile(path, []byte("short"), 0600))
	_, err = LoadOrCreateSecret(src, nil)
	assert.True(t, errors.Is(err, tperrors.ErrInvalidData))
}

func TestKeyringSecretSource(t *testing.T) {
	src := KeyringSecretSource{Ring: keyring.NewArrayKeyring(nil)}
	assert.Equal(t, "keyring item profile-secret", src.Describe())

	_, err := src.Load()
	assert.True(t, errors.Is(err, tperrors.ErrNotFound))

	secret, err := LoadOrCreateSecret(src, nil)
	require.NoError(t, err)

	stored, err := src.Load()
	require.NoError(t, err)
	assert.Equal(t, secret, stored)

	u, err := NewUserScope(src)
	require.NoError(t, err)
	blob, err := u.Protect([]byte("x"), nil)
	require.NoError(t, err)

	// a second scope over the same keyring opens the first one's data
	u2, err := NewUserScope(src)
	require.NoError(t, err)
	plain, err := u2.Unprotect(blob, nil)
	require.NoError(t, err)
	assert.Equal(t, "x", string(plain))
}
