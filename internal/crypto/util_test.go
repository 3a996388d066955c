package crypto

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestRandomBytes(t *testing.T) {
	a, err := RandomBytes(nil, 32)
	require.NoError(t, err)
	b, err := RandomBytes(nil, 32)
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)

	fixed, err := RandomBytes(bytes.NewReader(bytes.Repeat([]byte{7}, 4)), 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 7, 7, 7}, fixed)

	_, err = RandomBytes(errReader{}, 4)
	assert.Error(t, err)

	_, err = RandomBytes(bytes.NewReader([]byte{1}), 4)
	assert.Error(t, err, "short reads are errors")
}

func TestDigestMatchesConcatenation(t *testing.T) {
	want := sha256.Sum256([]byte("abcdef"))
	assert.Equal(t, want[:], Digest([]byte("ab"), []byte("cd"), []byte("ef")))
}

func TestWipe(t *testing.T) {
	a, b := []byte{1, 2, 3}, []byte{4}
	Wipe(a, b, nil)
	assert.Equal(t, []byte{0, 0, 0}, a)
	assert.Equal(t, []byte{0}, b)
}

func TestIsWeakKey(t *testing.T) {
	assert.True(t, IsWeakKey(make([]byte, 16)), "short")
	assert.True(t, IsWeakKey(make([]byte, 32)), "all zero")
	assert.True(t, IsWeakKey(bytes.Repeat([]byte{0xAB}, 32)), "all same")
	assert.True(t, IsWeakKey(bytes.Repeat([]byte{1, 2, 3, 4}, 8)), "low variety")

	strong, err := RandomBytes(nil, 32)
	require.NoError(t, err)
	// 32 random bytes have fewer than 16 distinct values with negligible probability
	assert.False(t, IsWeakKey(strong))
}

func TestCalculateChecksum(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		CalculateChecksum(nil))
}
