package tpmpass

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhammetozeski/TPMPass/audit"
	"github.com/muhammetozeski/TPMPass/identity"
	"github.com/muhammetozeski/TPMPass/internal/misc"
)

func createTestOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	return Options{
		DataDir:  dir,
		Audit:    FileAudit(dir),
		Reporter: discardReporter{},
	}
}

func TestOptionsValidate(t *testing.T) {
	assert.ErrorIs(t, Options{}.Validate(), ErrArgument)
	assert.ErrorIs(t, Options{DataDir: "x", UseKeyring: true}.Validate(), ErrArgument)
	assert.NoError(t, Options{DataDir: "x"}.Validate())
	assert.NoError(t, Options{DataDir: "x", UseKeyring: true, KeyringService: "tpmpass"}.Validate())

	assert.Equal(t, filepath.Join("x", "profile.key"), Options{DataDir: "x"}.profileSecretPath())
	assert.Equal(t, "y", Options{DataDir: "x", ProfileSecretPath: "y"}.profileSecretPath())
}

func TestOpenCreatesProfile(t *testing.T) {
	options := createTestOptions(t)

	v, err := Open(options)
	require.NoError(t, err)
	defer v.Close()

	assert.Equal(t, identity.Recreated, v.Identity().State())
	assert.FileExists(t, v.Identity().Path())
	assert.FileExists(t, filepath.Join(options.DataDir, misc.WarningFileName))
	assert.FileExists(t, filepath.Join(options.DataDir, "profile.key"))
	assert.Equal(t, "None - only protected buffers are pinned", v.SecureMemoryProtection())
	assert.Equal(t, "filesystem", v.StoreType())
}

func TestOpenReloadsProfile(t *testing.T) {
	options := createTestOptions(t)
	path := filepath.Join(t.TempDir(), "github"+misc.FileExtension)

	v, err := Open(options)
	require.NoError(t, err)
	require.NoError(t, v.EncryptAndSave("hunter2", path))
	require.NoError(t, v.Close())

	v, err = Open(options)
	require.NoError(t, err)
	defer v.Close()

	assert.Equal(t, identity.Loaded, v.Identity().State())

	var out bytes.Buffer
	require.NoError(t, v.DecryptAndPrint(context.Background(), path, &out))
	assert.Equal(t, "hunter2", out.String())
}

func TestOpenWithLostProfileSecret(t *testing.T) {
	options := createTestOptions(t)
	path := filepath.Join(t.TempDir(), "a.vault")

	v, err := Open(options)
	require.NoError(t, err)
	require.NoError(t, v.EncryptAndSave("hunter2", path))
	require.NoError(t, v.Close())

	require.NoError(t, os.Remove(filepath.Join(options.DataDir, "profile.key")))

	v, err = Open(options)
	require.NoError(t, err)
	defer v.Close()

	// the old identity can no longer be unwrapped and is replaced
	assert.Equal(t, identity.Recreated, v.Identity().State())
	_, err = v.DecryptFile(context.Background(), path)
	assert.ErrorIs(t, err, ErrCryptographic)
}

// redirect points the standard streams at files for the duration of fn.
func redirect(t *testing.T, fn func()) (stdout, stderr string) {
	t.Helper()
	dir := t.TempDir()
	outFile, err := os.Create(filepath.Join(dir, "stdout"))
	require.NoError(t, err)
	defer outFile.Close()
	errFile, err := os.Create(filepath.Join(dir, "stderr"))
	require.NoError(t, err)
	defer errFile.Close()

	origOut, origErr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = outFile, errFile
	defer func() { os.Stdout, os.Stderr = origOut, origErr }()

	fn()

	out, err := os.ReadFile(outFile.Name())
	require.NoError(t, err)
	errOut, err := os.ReadFile(errFile.Name())
	require.NoError(t, err)
	return string(out), string(errOut)
}

func TestDefaultReporterKeepsStdoutClean(t *testing.T) {
	options := createTestOptions(t)
	path := filepath.Join(t.TempDir(), "a.vault")

	v, err := Open(options)
	require.NoError(t, err)
	require.NoError(t, v.Close())

	// a lost profile secret makes Open warn about the replaced identity
	require.NoError(t, os.Remove(filepath.Join(options.DataDir, "profile.key")))
	options.Reporter = nil

	var printed bytes.Buffer
	stdout, stderr := redirect(t, func() {
		v, err = Open(options)
		require.NoError(t, err)
		defer v.Close()

		require.NoError(t, v.EncryptAndSave("hunter2", path))
		require.NoError(t, v.DecryptAndPrint(context.Background(), path, &printed))
	})

	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "generating a new one")
	assert.Equal(t, "hunter2", printed.String())
}

func TestOpenRejectsInvalidOptions(t *testing.T) {
	_, err := Open(Options{})
	assert.ErrorIs(t, err, ErrArgument)
}

func TestVaultAuditTrail(t *testing.T) {
	options := createTestOptions(t)
	path := filepath.Join(t.TempDir(), "a.vault")

	v, err := Open(options)
	require.NoError(t, err)
	defer v.Close()

	require.NoError(t, v.EncryptAndSave("hunter2", path))
	_, err = v.DecryptFile(context.Background(), filepath.Join(t.TempDir(), "missing.vault"))
	require.Error(t, err)

	result, err := v.GetAudit().Query(audit.QueryOptions{Action: audit.ActionEncryptFile})
	require.NoError(t, err)
	require.NotEmpty(t, result.Events)
	assert.True(t, result.Events[0].Success)
	assert.Equal(t, path, result.Events[0].Path)

	result, err = v.GetAudit().Query(audit.QueryOptions{Action: audit.ActionDecryptFile})
	require.NoError(t, err)
	require.NotEmpty(t, result.Events)
	assert.False(t, result.Events[0].Success)
}

func TestVaultCloseIsIdempotent(t *testing.T) {
	v, err := Open(createTestOptions(t))
	require.NoError(t, err)

	require.NoError(t, v.Close())
	require.NoError(t, v.Close())

	err = v.EncryptAndSave("hunter2", filepath.Join(t.TempDir(), "a.vault"))
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestErrorCategory(t *testing.T) {
	assert.Equal(t, "", ErrorCategory(nil))
	assert.Equal(t, "not_found", ErrorCategory(ErrNotFound))
	assert.Equal(t, "invalid_data", ErrorCategory(ErrInvalidData))
	assert.Equal(t, "cryptographic", ErrorCategory(ErrCryptographic))
	assert.Equal(t, "argument", ErrorCategory(ErrArgument))
	assert.Equal(t, "disposed", ErrorCategory(ErrDisposed))
	assert.Equal(t, "not_initialized", ErrorCategory(ErrNotInitialized))
	assert.Equal(t, "scan_failed", ErrorCategory(ErrScanFailed))
	assert.Equal(t, "io", ErrorCategory(os.ErrPermission))
}
