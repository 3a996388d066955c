package persist

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tperrors "github.com/muhammetozeski/TPMPass/internal/errors"
)

// Test the Common Store Functionality
func testStoreImplementation(t *testing.T, store Store) {
	identityBlob := []byte("protected-identity-blob")
	note := []byte("do not delete")

	t.Run("Ping", func(t *testing.T) {
		err := store.Ping()
		assert.NoError(t, err, "Store should be reachable")
	})

	t.Run("GetType", func(t *testing.T) {
		storeType := store.GetType()
		assert.NotEmpty(t, storeType, "Store type should not be empty")
		t.Logf("Store type: %s", storeType)
	})

	t.Run("LoadMissing", func(t *testing.T) {
		_, err := store.Load("master.identity")
		require.Error(t, err)
		assert.True(t, errors.Is(err, tperrors.ErrNotFound), "missing data should map to ErrNotFound, got %v", err)

		exists, err := store.Exists("master.identity")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	var identityVersion string
	t.Run("SaveAbsent", func(t *testing.T) {
		version, err := store.Save("master.identity", identityBlob, VersionAbsent)
		require.NoError(t, err)
		assert.NotEmpty(t, version, "Version should not be empty")
		identityVersion = version
	})

	t.Run("SaveAbsentConflict", func(t *testing.T) {
		_, err := store.Save("master.identity", []byte("other"), VersionAbsent)
		var conflict ConcurrencyError
		require.True(t, errors.As(err, &conflict), "expected ConcurrencyError, got %v", err)
		assert.Equal(t, identityVersion, conflict.ActualVersion)
	})

	t.Run("Load", func(t *testing.T) {
		versioned, err := store.Load("master.identity")
		require.NoError(t, err)
		assert.Equal(t, identityBlob, versioned.Data, "Loaded data should match saved data")
		assert.Equal(t, identityVersion, versioned.Version)
		assert.False(t, versioned.Timestamp.IsZero())
	})

	t.Run("SaveWithCorrectVersion", func(t *testing.T) {
		updated := []byte("rotated-identity-blob")
		version, err := store.Save("master.identity", updated, identityVersion)
		require.NoError(t, err)
		assert.NotEqual(t, identityVersion, version)
		identityVersion = version
	})

	t.Run("SaveWithStaleVersion", func(t *testing.T) {
		_, err := store.Save("master.identity", []byte("stale"), "stale-version")
		var conflict ConcurrencyError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, "stale-version", conflict.ExpectedVersion)
	})

	t.Run("SaveUnconditional", func(t *testing.T) {
		_, err := store.Save("README.txt", note, "")
		require.NoError(t, err)
		_, err = store.Save("README.txt", note, "")
		require.NoError(t, err, "empty expected version always overwrites")
	})

	t.Run("InvalidNames", func(t *testing.T) {
		for _, name := range []string{"", "../escape", "a/b", `a\b`, ".."} {
			_, err := store.Save(name, note, "")
			assert.Error(t, err, "name %q should be rejected", name)
		}
	})

	t.Run("ConcurrentSaves", func(t *testing.T) {
		// at most one writer can claim an absent name
		var wg sync.WaitGroup
		wins := make(chan struct{}, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.Save("claim", []byte("x"), VersionAbsent); err == nil {
					wins <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(wins)
		assert.Len(t, wins, 1)
	})

	t.Run("Exists", func(t *testing.T) {
		exists, err := store.Exists("README.txt")
		require.NoError(t, err)
		assert.True(t, exists)

		_, err = store.Exists("../escape")
		assert.Error(t, err)
	})

	t.Run("Close", func(t *testing.T) {
		assert.NoError(t, store.Close())
	})
}
