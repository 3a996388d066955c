// Package tpmpass stores individual secrets in encrypted files that only the
// current user, on the current machine, holding the current master identity,
// can open again.
//
// A random 32-byte master identity is generated once per profile and kept on
// disk wrapped by user-scoped data protection. Each secret file gets a fresh
// salt; the file key is derived from the identity and that salt, and the
// plaintext is wrapped with the same data protection using the file key as
// auxiliary entropy. Decrypted secrets are handed out inside protected
// buffers that keep the plaintext encrypted in memory between accesses.
//
// Key Features:
//   - One random master identity per profile, never derived from a password
//   - Per-file salts, so equal secrets produce unrelated files
//   - Plaintext kept encrypted in memory and wiped after each access
//   - Optional clipboard exposure with automatic clearing
//   - Optional scan of the calling process before any decryption
//   - JSONL or syslog audit trail
//
// Basic Usage:
//
//	opts, err := tpmpass.DefaultOptions()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	v, err := tpmpass.Open(opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer v.Close()
//
//	// Store a secret
//	err = v.EncryptAndSave("hunter2", "github.tpmPassword")
//
//	// Use it without keeping a plaintext copy around
//	err = v.DecryptAndInteract(ctx, "github.tpmPassword", func(buf *tpmpass.Buffer) error {
//	    return buf.AccessData(func(secret []byte) error {
//	        return login(secret)
//	    })
//	})
package tpmpass

import (
	"context"
	"io"

	"github.com/muhammetozeski/TPMPass/clipboard"
	"github.com/muhammetozeski/TPMPass/internal/membuf"
)

var _ Service = (*Vault)(nil)
var _ Service = (*Codec)(nil)

// Buffer holds a decrypted secret, encrypted in memory between accesses.
// Read it with AccessData and release it with Dispose.
type Buffer = membuf.Buffer

// Reporter receives warnings that do not abort an operation.
type Reporter = membuf.Reporter

// Service is the set of secret-file operations offered by a Vault.
//
// All methods are safe for concurrent use. Every decryption first passes the
// configured scan gate; a refusal is reported as ErrScanFailed and nothing is
// read from disk.
type Service interface {

	// === Encryption ===

	// EncryptAndSave encrypts plaintext under a fresh salt and writes the
	// envelope (salt followed by the wrapped ciphertext) to path, replacing
	// any existing file.
	//
	// Security Notes:
	//   - A new salt is drawn for every call, so the same plaintext never
	//     produces the same file twice
	//   - The derived file key is wiped before returning
	//
	// Example:
	//   if err := v.EncryptAndSave("hunter2", "github.tpmPassword"); err != nil {
	//       return fmt.Errorf("save failed: %w", err)
	//   }
	EncryptAndSave(plaintext string, path string) error

	// EncryptAndSaveBytes is EncryptAndSave for a byte slice, which is wiped
	// on return.
	EncryptAndSaveBytes(plaintext []byte, path string) error

	// === Decryption ===

	// DecryptFile returns the plaintext of path inside a protected buffer.
	// The caller must Dispose the buffer.
	//
	// Returns:
	//   - ErrNotFound when path does not exist
	//   - ErrInvalidData when the file is too short to hold a salt and ciphertext
	//   - ErrCryptographic when the file cannot be opened with this identity,
	//     user or machine, or was modified
	DecryptFile(ctx context.Context, path string) (*membuf.Buffer, error)

	// DecryptAndInteract decrypts path, calls fn with the buffer and disposes
	// the buffer afterwards whatever fn does.
	DecryptAndInteract(ctx context.Context, path string, fn func(buf *membuf.Buffer) error) error

	// DecryptAndPrint writes the plaintext of path to w. The only plaintext
	// copy outside the buffer is the transient one handed to w.
	DecryptAndPrint(ctx context.Context, path string, w io.Writer) error

	// DecryptAndCopy places the plaintext of path on the clipboard through
	// exposer, which clears it again after its configured delay.
	DecryptAndCopy(ctx context.Context, path string, exposer *clipboard.Exposer) error
}
