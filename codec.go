package tpmpass

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/muhammetozeski/TPMPass/audit"
	"github.com/muhammetozeski/TPMPass/clipboard"
	"github.com/muhammetozeski/TPMPass/dataprotect"
	"github.com/muhammetozeski/TPMPass/identity"
	"github.com/muhammetozeski/TPMPass/internal/crypto"
	"github.com/muhammetozeski/TPMPass/internal/debug"
	"github.com/muhammetozeski/TPMPass/internal/membuf"
	"github.com/muhammetozeski/TPMPass/internal/misc"
	"github.com/muhammetozeski/TPMPass/persist"
	"github.com/muhammetozeski/TPMPass/scan"
)

// Codec encrypts secrets into envelope files and decrypts them back into
// protected buffers.
//
// Envelope layout:
//
//	offset 0..31  : file salt, not encrypted
//	offset 32..end: data protection output over the UTF-8 plaintext,
//	                with the derived file key as auxiliary entropy
type Codec struct {
	deriver   *Deriver
	protector dataprotect.Protector
	gate      scan.Gate
	audit     audit.Logger
	reporter  membuf.Reporter
	bufOpts   []membuf.Option
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithGate runs gate before every decryption.
func WithGate(gate scan.Gate) CodecOption {
	return func(c *Codec) { c.gate = gate }
}

func WithAudit(l audit.Logger) CodecOption {
	return func(c *Codec) { c.audit = l }
}

// WithReporter receives protected-buffer warnings.
func WithReporter(r membuf.Reporter) CodecOption {
	return func(c *Codec) { c.reporter = r }
}

// WithBufferOptions is passed to every buffer returned by DecryptFile.
func WithBufferOptions(opts ...membuf.Option) CodecOption {
	return func(c *Codec) { c.bufOpts = append(c.bufOpts, opts...) }
}

// WithSaltSource replaces crypto/rand for file salts.
func WithSaltSource(r io.Reader) CodecOption {
	return func(c *Codec) { c.deriver.rand = r }
}

// NewCodec creates a Codec over an initialized identity store.
func NewCodec(id *identity.Store, protector dataprotect.Protector, opts ...CodecOption) *Codec {
	c := &Codec{
		deriver:   NewDeriver(id, nil),
		protector: protector,
		gate:      scan.NoopGate{},
		audit:     audit.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deriver exposes the key derivation used by the codec.
func (c *Codec) Deriver() *Deriver {
	return c.deriver
}

// EncryptAndSave encrypts plaintext and writes the envelope to path,
// replacing any existing file.
//
// The write is atomic: readers see either the old file or the complete new
// one. The file is created with mode 0600. All transient copies of the
// plaintext and of the derived key are wiped before returning.
//
// Parameters:
//   - plaintext: the secret, must not be empty
//   - path: destination, conventionally ending in ".tpmPassword"
//
// Returns:
//   - ErrArgument for an empty plaintext or path
//   - ErrNotInitialized if the master identity has not been loaded
//   - ErrCryptographic if salt generation or data protection fails
//   - a wrapped I/O error if the file cannot be written
func (c *Codec) EncryptAndSave(plaintext string, path string) error {
	return c.EncryptAndSaveBytes([]byte(plaintext), path)
}

// EncryptAndSaveBytes is EncryptAndSave for callers that hold the secret in
// a byte slice, such as a password prompt. The slice is wiped on return.
func (c *Codec) EncryptAndSaveBytes(plaintext []byte, path string) (err error) {
	defer crypto.Wipe(plaintext)

	requestID := newRequestID()
	start := time.Now()
	defer func() {
		c.logAudit(requestID, audit.ActionEncryptFile, err, map[string]interface{}{
			"path":        path,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}()

	if len(plaintext) == 0 {
		return fmt.Errorf("%w: plaintext cannot be empty", ErrArgument)
	}
	if path == "" {
		return fmt.Errorf("%w: path cannot be empty", ErrArgument)
	}

	salt, err := c.deriver.GenerateFileSalt()
	if err != nil {
		return err
	}

	key, err := c.deriver.DeriveKey(salt)
	if err != nil {
		return fmt.Errorf("failed to derive file key: %w", err)
	}
	defer crypto.Wipe(key)

	ciphertext, err := c.protector.Protect(plaintext, key)
	if err != nil {
		return fmt.Errorf("%w: failed to protect data: %v", ErrCryptographic, err)
	}

	envelope := make([]byte, 0, len(salt)+len(ciphertext))
	envelope = append(envelope, salt...)
	envelope = append(envelope, ciphertext...)

	if err = persist.WriteFile(path, envelope, misc.FilePermissions); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	debug.Print("wrote envelope of %d bytes to %s\n", len(envelope), path)
	return nil
}

// DecryptFile reads the envelope at path and returns its plaintext inside a
// protected buffer. The caller owns the buffer and must Dispose it;
// DecryptAndInteract does that automatically.
//
// The scan gate runs first. Nothing is read or allocated if it refuses.
//
// Returns:
//   - ErrScanFailed if the gate blocks decryption
//   - ErrNotFound if path does not exist
//   - ErrInvalidData if the file is 32 bytes or shorter
//   - ErrCryptographic if the data cannot be unprotected (other user,
//     other machine, another identity, tampering)
//   - ErrNotInitialized if the master identity has not been loaded
func (c *Codec) DecryptFile(ctx context.Context, path string) (buf *membuf.Buffer, err error) {
	requestID := newRequestID()
	start := time.Now()
	defer func() {
		c.logAudit(requestID, audit.ActionDecryptFile, err, map[string]interface{}{
			"path":        path,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}()

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	if err = c.gate.Check(ctx); err != nil {
		c.logAudit(requestID, audit.ActionScanGate, err, nil)
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if misc.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if len(data) <= misc.SaltSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, too short to be an envelope", ErrInvalidData, path, len(data))
	}

	salt, ciphertext := data[:misc.SaltSize], data[misc.SaltSize:]

	key, err := c.deriver.DeriveKey(salt)
	if err != nil {
		return nil, fmt.Errorf("failed to derive file key: %w", err)
	}
	defer crypto.Wipe(key)

	plaintext, err := c.protector.Unprotect(ciphertext, key)
	if err != nil {
		if !errors.Is(err, ErrCryptographic) {
			err = fmt.Errorf("%w: %v", ErrCryptographic, err)
		}
		return nil, fmt.Errorf("failed to decrypt %s: %w", path, err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("%w: %s holds an empty secret", ErrInvalidData, path)
	}

	opts := append([]membuf.Option{}, c.bufOpts...)
	if c.reporter != nil {
		opts = append([]membuf.Option{membuf.WithReporter(c.reporter)}, opts...)
	}
	buf, err = membuf.New(plaintext, opts...)
	if err != nil {
		crypto.Wipe(plaintext)
		return nil, err
	}
	return buf, nil
}

// DecryptAndInteract decrypts path and hands the buffer to fn. The buffer is
// disposed when fn returns, also when fn fails or panics.
func (c *Codec) DecryptAndInteract(ctx context.Context, path string, fn func(buf *membuf.Buffer) error) error {
	buf, err := c.DecryptFile(ctx, path)
	if err != nil {
		return err
	}
	defer buf.Dispose()

	return fn(buf)
}

// DecryptAndPrint writes the plaintext of path to w without a trailing newline.
func (c *Codec) DecryptAndPrint(ctx context.Context, path string, w io.Writer) error {
	return c.DecryptAndInteract(ctx, path, func(buf *membuf.Buffer) error {
		return buf.AccessData(func(data []byte) error {
			_, err := w.Write(data)
			return err
		})
	})
}

// DecryptAndCopy puts the plaintext of path on the clipboard. The exposer
// schedules the automatic clear.
func (c *Codec) DecryptAndCopy(ctx context.Context, path string, exposer *clipboard.Exposer) error {
	err := c.DecryptAndInteract(ctx, path, func(buf *membuf.Buffer) error {
		return buf.AccessData(exposer.Expose)
	})
	c.logAudit(newRequestID(), audit.ActionClipboardExpose, err, map[string]interface{}{"path": path})
	return err
}

func (c *Codec) logAudit(requestID, action string, err error, metadata map[string]interface{}) {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadata["request_id"] = requestID
	if err != nil {
		metadata["error"] = err.Error()
		metadata["category"] = ErrorCategory(err)
	}
	if auditErr := c.audit.Log(action, err == nil, metadata); auditErr != nil && c.reporter != nil {
		c.reporter.Warnf("audit logging failed for action %s: %v", action, auditErr)
	}
}
