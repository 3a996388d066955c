package memcrypt

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tperrors "github.com/muhammetozeski/TPMPass/internal/errors"
)

func TestXTSRoundTrip(t *testing.T) {
	c := NewXTSCipher()
	plain := []byte("0123456789abcdef0123456789abcdef")
	buf := append([]byte(nil), plain...)

	require.NoError(t, c.EncryptInPlace(buf, 7))
	assert.NotEqual(t, plain, buf, "region should be scrambled")

	require.NoError(t, c.DecryptInPlace(buf, 7))
	assert.Equal(t, plain, buf)
}

func TestXTSTweakMatters(t *testing.T) {
	c := NewXTSCipher()
	a := bytes.Repeat([]byte{0x42}, 32)
	b := bytes.Repeat([]byte{0x42}, 32)

	require.NoError(t, c.EncryptInPlace(a, 1))
	require.NoError(t, c.EncryptInPlace(b, 2))
	assert.NotEqual(t, a, b, "same plaintext under different tweaks must differ")

	require.NoError(t, c.DecryptInPlace(a, 2))
	assert.NotEqual(t, bytes.Repeat([]byte{0x42}, 32), a, "wrong tweak must not decrypt")
}

func TestXTSKeysAreIsolated(t *testing.T) {
	buf := bytes.Repeat([]byte{0x01}, 16)
	require.NoError(t, NewXTSCipher().EncryptInPlace(buf, 0))
	require.NoError(t, NewXTSCipher().DecryptInPlace(buf, 0))
	assert.NotEqual(t, bytes.Repeat([]byte{0x01}, 16), buf)
}

func TestXTSRejectsUnalignedRegions(t *testing.T) {
	c := Process()
	for _, n := range []int{0, 1, 15, 17} {
		err := c.EncryptInPlace(make([]byte, n), 0)
		assert.True(t, errors.Is(err, tperrors.ErrArgument), "size %d: %v", n, err)
	}
}

func TestProcessIsSingleton(t *testing.T) {
	assert.Same(t, Process(), Process())
}
