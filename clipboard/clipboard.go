// Package clipboard puts secrets on the system clipboard and takes them off
// again after a delay.
//
// An Exposer owns at most one pending clear. Exposing a new secret cancels
// the previous clear and schedules a new one. A clear only wipes the
// clipboard if it still holds what the Exposer put there, so text the user
// copied in the meantime survives. The clear never touches the protected
// buffer the secret came from; that buffer may already be disposed.
package clipboard

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"github.com/muhammetozeski/TPMPass/internal/crypto"
)

// Board is the system clipboard.
type Board interface {
	WriteAll(text string) error
	ReadAll() (string, error)
}

// SystemBoard uses xclip/xsel/wl-clipboard on Linux, pbcopy on macOS and
// the Win32 API on Windows.
type SystemBoard struct{}

func (SystemBoard) WriteAll(text string) error { return clipboard.WriteAll(text) }
func (SystemBoard) ReadAll() (string, error)   { return clipboard.ReadAll() }

// Available reports whether a clipboard backend was found.
func Available() bool {
	return !clipboard.Unsupported
}

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Clock schedules calls; tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Reporter receives clear failures, which happen on a timer goroutine.
type Reporter interface {
	Warnf(msg string, args ...any)
}

type nopReporter struct{}

func (nopReporter) Warnf(string, ...any) {}

// Exposer manages clipboard exposure of secrets.
type Exposer struct {
	mu       sync.Mutex
	board    Board
	clock    Clock
	delay    time.Duration
	reporter Reporter

	pending    Timer
	generation uint64
	digest     []byte
	cleared    chan struct{}
}

// Option configures an Exposer.
type Option func(*Exposer)

func WithBoard(b Board) Option       { return func(e *Exposer) { e.board = b } }
func WithClock(c Clock) Option       { return func(e *Exposer) { e.clock = c } }
func WithReporter(r Reporter) Option { return func(e *Exposer) { e.reporter = r } }

// NewExposer clears the clipboard delay after each exposure. A delay of zero
// or less disables the automatic clear.
func NewExposer(delay time.Duration, opts ...Option) *Exposer {
	e := &Exposer{
		board:    SystemBoard{},
		clock:    realClock{},
		delay:    delay,
		reporter: nopReporter{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expose copies secret to the clipboard and schedules the clear. The caller
// keeps ownership of secret and should wipe it afterwards. The clipboard API
// takes a string, so one immutable copy of the secret lives on the heap
// until the garbage collector reclaims it.
func (e *Exposer) Expose(secret []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelLocked()
	e.cleared = nil

	if err := e.board.WriteAll(string(secret)); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	e.digest = crypto.Digest(secret)

	if e.delay <= 0 {
		return nil
	}

	e.generation++
	gen := e.generation
	e.cleared = make(chan struct{})
	done := e.cleared
	e.pending = e.clock.AfterFunc(e.delay, func() {
		e.clearIfCurrent(gen)
		close(done)
	})
	return nil
}

// Done is closed once the most recently scheduled clear has run. It is nil
// when no clear was scheduled or the last one was cancelled.
func (e *Exposer) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cleared
}

// Pending reports whether a clear is scheduled.
func (e *Exposer) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending != nil
}

// Cancel drops the scheduled clear and leaves the clipboard as it is.
func (e *Exposer) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
}

// ClearNow cancels the schedule and clears the clipboard if it still holds
// the exposed secret.
func (e *Exposer) ClearNow() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
	return e.clearLocked()
}

func (e *Exposer) cancelLocked() {
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
		e.cleared = nil
	}
	// a timer that already fired sees a newer generation and does nothing
	e.generation++
}

func (e *Exposer) clearIfCurrent(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		return
	}
	e.pending = nil
	if err := e.clearLocked(); err != nil {
		e.reporter.Warnf("could not clear clipboard: %v", err)
	}
}

func (e *Exposer) clearLocked() error {
	if e.digest == nil {
		return nil
	}
	current, err := e.board.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read clipboard: %w", err)
	}
	if !bytes.Equal(crypto.Digest([]byte(current)), e.digest) {
		// the user copied something else since
		e.digest = nil
		return nil
	}
	if err = e.board.WriteAll(""); err != nil {
		return fmt.Errorf("failed to clear clipboard: %w", err)
	}
	e.digest = nil
	return nil
}
