// Package membuf provides Buffer, a container that keeps a secret encrypted
// in RAM except while a caller is inside AccessData.
//
// The backing store lives on pages of its own outside the Go heap, is padded
// to the memory cipher's block size, encrypted in place with a key that lives
// only in this process, and pinned against swap where the OS allows it. A Buffer is owned by whoever created it; hand
// it over explicitly and always Dispose it, typically with defer.
package membuf

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/awnumar/memguard"

	tperrors "github.com/muhammetozeski/TPMPass/internal/errors"
	"github.com/muhammetozeski/TPMPass/internal/mem"
	"github.com/muhammetozeski/TPMPass/internal/memcrypt"
	"github.com/muhammetozeski/TPMPass/internal/misc"
)

// Reporter receives conditions that must be surfaced but must not fail the
// operation. *logging.Logger satisfies it.
type Reporter interface {
	Warnf(msg string, args ...any)
	Errorf(msg string, args ...any)
	Criticalf(msg string, args ...any)
}

type nopReporter struct{}

func (nopReporter) Warnf(string, ...any)     {}
func (nopReporter) Errorf(string, ...any)    {}
func (nopReporter) Criticalf(string, ...any) {}

// Option configures a Buffer.
type Option func(*Buffer)

// WithCipher replaces the process memory cipher.
func WithCipher(c memcrypt.Cipher) Option {
	return func(b *Buffer) { b.cipher = c }
}

// WithPinner replaces the OS page pinner.
func WithPinner(p mem.Pinner) Option {
	return func(b *Buffer) { b.pinner = p }
}

// WithAllocator replaces the OS page allocator.
func WithAllocator(a mem.Allocator) Option {
	return func(b *Buffer) { b.alloc = a }
}

// WithReporter sets where warnings go. The default discards them.
func WithReporter(r Reporter) Option {
	return func(b *Buffer) { b.reporter = r }
}

var tweakCounter atomic.Uint64

// Buffer holds one secret. It must not be copied.
type Buffer struct {
	mu       sync.Mutex
	region   []byte // whole pages owned by this buffer
	storage  []byte // region prefix, encrypted, padded to MemoryBlockSize
	length   int
	tweak    uint64
	mapped   bool
	pinned   bool
	disposed bool

	cipher   memcrypt.Cipher
	pinner   mem.Pinner
	alloc    mem.Allocator
	reporter Reporter
}

// New moves plaintext into a new Buffer. The caller's slice is zeroed before
// New returns, on success and on failure alike.
func New(plaintext []byte, opts ...Option) (*Buffer, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("%w: cannot protect an empty buffer", tperrors.ErrArgument)
	}

	b := &Buffer{
		length:   len(plaintext),
		tweak:    tweakCounter.Add(1),
		cipher:   memcrypt.Process(),
		pinner:   mem.PagePinner{},
		alloc:    mem.PageAllocator{},
		reporter: nopReporter{},
	}
	for _, opt := range opts {
		opt(b)
	}

	size := misc.PadToBlock(len(plaintext))
	region, err := b.alloc.Alloc(size)
	if err != nil {
		b.reporter.Warnf("could not map dedicated secret pages, using heap memory: %v", err)
		region = make([]byte, size)
	} else {
		b.mapped = true
	}
	b.region = region
	b.storage = region[:size]

	copy(b.storage, plaintext)
	memguard.WipeBytes(plaintext)

	if err := b.cipher.EncryptInPlace(b.storage, b.tweak); err != nil {
		b.release()
		b.disposed = true
		return nil, fmt.Errorf("%w: failed to encrypt buffer: %v", tperrors.ErrCryptographic, err)
	}

	if err := b.pinner.Pin(b.region); err != nil {
		b.reporter.Warnf("could not lock secret memory against swap: %v", err)
	} else {
		b.pinned = true
	}

	return b, nil
}

// AccessData hands fn a transient plaintext copy of the secret.
//
// The backing store is re-encrypted before fn runs, so the copy is the only
// readable form of the secret while fn executes. The copy is zeroed when fn
// returns, whether it returns normally, with an error, or by panicking. fn
// must not retain the slice.
//
// A failure to re-encrypt the backing store is reported through the
// Reporter and retried once; it never prevents fn from running.
//
// The buffer is not locked while fn runs, so fn may call AccessData or
// Dispose on the same buffer. A Dispose from inside fn leaves the copy fn
// already holds intact until fn returns.
func (b *Buffer) AccessData(fn func(data []byte) error) error {
	plain, err := b.snapshot()
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(plain)

	return fn(plain)
}

func (b *Buffer) snapshot() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.disposed {
		return nil, fmt.Errorf("%w: protected buffer", tperrors.ErrDisposed)
	}

	if err := b.cipher.DecryptInPlace(b.storage, b.tweak); err != nil {
		return nil, fmt.Errorf("%w: failed to decrypt buffer: %v", tperrors.ErrCryptographic, err)
	}

	plain := make([]byte, b.length)
	copy(plain, b.storage[:b.length])

	b.reencrypt()
	return plain, nil
}

func (b *Buffer) reencrypt() {
	err := b.cipher.EncryptInPlace(b.storage, b.tweak)
	if err == nil {
		return
	}
	b.reporter.Errorf("failed to re-encrypt protected buffer, retrying: %v", err)

	if err = b.cipher.EncryptInPlace(b.storage, b.tweak); err != nil {
		b.reporter.Criticalf("protected buffer left UNENCRYPTED in memory: %v", err)
	}
}

// Dispose unpins, zeroes and unmaps the backing store. Safe to call more than
// once.
func (b *Buffer) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.disposed {
		return
	}
	b.disposed = true

	if b.pinned {
		if err := b.pinner.Unpin(b.region); err != nil {
			b.reporter.Warnf("could not unlock secret memory: %v", err)
		}
		b.pinned = false
	}
	b.release()
}

func (b *Buffer) release() {
	memguard.WipeBytes(b.region)
	if b.mapped {
		if err := b.alloc.Free(b.region); err != nil {
			b.reporter.Warnf("could not release secret memory: %v", err)
		}
		b.mapped = false
	}
	b.region = nil
	b.storage = nil
}

// Len returns the logical length of the secret.
func (b *Buffer) Len() int {
	return b.length
}

// IsDisposed reports whether Dispose has run.
func (b *Buffer) IsDisposed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disposed
}

// Pinned reports whether the backing pages are locked in RAM.
func (b *Buffer) Pinned() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pinned
}
