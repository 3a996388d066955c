// Package identity manages the master identity: 32 random bytes per user
// profile from which every file key is derived.
//
// The identity is persisted only in wrapped form, protected for the current
// user with a fixed auxiliary entropy value, and held in memory only inside a
// protected buffer. If the persisted copy is missing or cannot be unwrapped
// (corruption, another user, another machine) a new identity is generated;
// files encrypted under the old one become unrecoverable, which is why a
// warning note is written next to the identity file on every start.
package identity

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/muhammetozeski/TPMPass/audit"
	"github.com/muhammetozeski/TPMPass/dataprotect"
	"github.com/muhammetozeski/TPMPass/internal/crypto"
	tperrors "github.com/muhammetozeski/TPMPass/internal/errors"
	"github.com/muhammetozeski/TPMPass/internal/membuf"
	"github.com/muhammetozeski/TPMPass/internal/misc"
	"github.com/muhammetozeski/TPMPass/persist"
)

// State of the in-memory identity.
type State int

const (
	NotLoaded State = iota
	Loaded          // read back from disk
	Recreated       // generated because none was usable
)

func (s State) String() string {
	switch s {
	case NotLoaded:
		return "not loaded"
	case Loaded:
		return "loaded"
	case Recreated:
		return "recreated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// maxWeakRetries bounds regeneration when the random source returns a weak key.
const maxWeakRetries = 3

// Store owns the process-wide master identity.
type Store struct {
	mu        sync.RWMutex
	store     persist.Store
	protector dataprotect.Protector
	audit     audit.Logger
	reporter  membuf.Reporter
	rand      io.Reader
	bufOpts   []membuf.Option

	buf   *membuf.Buffer
	state State
}

// Option configures a Store.
type Option func(*Store)

func WithAudit(l audit.Logger) Option {
	return func(s *Store) { s.audit = l }
}

// WithReporter receives the regeneration warning and buffer warnings.
func WithReporter(r membuf.Reporter) Option {
	return func(s *Store) { s.reporter = r }
}

// WithRandom sets the source for new identities. Defaults to crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(s *Store) { s.rand = r }
}

// WithBufferOptions is passed to every protected buffer the store creates.
func WithBufferOptions(opts ...membuf.Option) Option {
	return func(s *Store) { s.bufOpts = append(s.bufOpts, opts...) }
}

// New creates a Store. Nothing is read until InitializeMasterIdentity.
func New(store persist.Store, protector dataprotect.Protector, opts ...Option) *Store {
	s := &Store{
		store:     store,
		protector: protector,
		audit:     audit.NewNoOpLogger(),
		reporter:  discardReporter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitializeMasterIdentity loads the persisted identity or creates a new one.
// It must run before any other operation on the store; running it again
// reloads from disk and replaces the in-memory copy.
//
// A missing or unreadable identity is not an error: it is replaced and the
// returned state is Recreated. Errors are returned only when no identity
// could be established at all, e.g. the store is not writable.
func (s *Store) InitializeMasterIdentity() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requestID := newRequestID()

	if err := s.writeWarning(); err != nil {
		s.logAudit(requestID, audit.ActionIdentityInitFailed, err, nil)
		return s.state, err
	}

	raw, version, err := s.load()
	state := Loaded
	if err != nil {
		if !errors.Is(err, tperrors.ErrNotFound) {
			s.reporter.Warnf("master identity at %s could not be read (%v); generating a new one. "+
				"Files encrypted with the previous identity can no longer be decrypted.",
				s.Path(), err)
		}
		expected := version
		if expected == "" {
			expected = persist.VersionAbsent
		}
		raw, state, err = s.regenerate(expected)
		if err != nil {
			s.logAudit(requestID, audit.ActionIdentityInitFailed, err, nil)
			return s.state, err
		}
	}

	buf, err := membuf.New(raw, append([]membuf.Option{membuf.WithReporter(s.reporter)}, s.bufOpts...)...)
	if err != nil {
		crypto.Wipe(raw)
		s.logAudit(requestID, audit.ActionIdentityInitFailed, err, nil)
		return s.state, fmt.Errorf("failed to protect master identity in memory: %w", err)
	}

	if s.buf != nil {
		s.buf.Dispose()
	}
	s.buf = buf
	s.state = state

	action := audit.ActionIdentityLoaded
	if state == Recreated {
		action = audit.ActionIdentityRecreated
	}
	s.logAudit(requestID, action, nil, map[string]interface{}{"path": s.Path()})

	return state, nil
}

// load reads and unwraps the persisted identity. The returned version is the
// stored blob's version when one exists, even if unwrapping failed.
func (s *Store) load() ([]byte, string, error) {
	vd, err := s.store.Load(misc.IdentityFileName)
	if err != nil {
		return nil, "", err
	}

	raw, err := s.protector.Unprotect(vd.Data, misc.IdentityEntropy())
	if err != nil {
		return nil, vd.Version, fmt.Errorf("%w: failed to unwrap master identity: %v", tperrors.ErrCryptographic, err)
	}
	if len(raw) != misc.IdentitySize {
		crypto.Wipe(raw)
		return nil, vd.Version, fmt.Errorf("%w: master identity has %d bytes", tperrors.ErrInvalidData, len(raw))
	}
	return raw, vd.Version, nil
}

// regenerate writes a fresh identity, replacing the blob at expectedVersion.
// If another process replaced it first, that process's identity is adopted.
func (s *Store) regenerate(expectedVersion string) ([]byte, State, error) {
	raw, err := s.generate()
	if err != nil {
		return nil, s.state, err
	}

	blob, err := s.protector.Protect(raw, misc.IdentityEntropy())
	if err != nil {
		crypto.Wipe(raw)
		return nil, s.state, fmt.Errorf("%w: failed to wrap master identity: %v", tperrors.ErrCryptographic, err)
	}

	_, err = s.store.Save(misc.IdentityFileName, blob, expectedVersion)
	if err == nil {
		return raw, Recreated, nil
	}
	crypto.Wipe(raw)

	var conflict persist.ConcurrencyError
	if !errors.As(err, &conflict) {
		return nil, s.state, fmt.Errorf("failed to persist master identity: %w", err)
	}

	// lost the race; the winner's identity is the one every file will use
	raw, _, err = s.load()
	if err != nil {
		return nil, s.state, fmt.Errorf("master identity changed concurrently and is unreadable: %w", err)
	}
	return raw, Loaded, nil
}

func (s *Store) generate() ([]byte, error) {
	for i := 0; i < maxWeakRetries; i++ {
		raw, err := crypto.RandomBytes(s.rand, misc.IdentitySize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", tperrors.ErrCryptographic, err)
		}
		if !crypto.IsWeakKey(raw) {
			return raw, nil
		}
		crypto.Wipe(raw)
	}
	return nil, fmt.Errorf("%w: random source produced weak identities", tperrors.ErrCryptographic)
}

func (s *Store) writeWarning() error {
	exists, err := s.store.Exists(misc.WarningFileName)
	if err != nil {
		return fmt.Errorf("failed to check identity warning note: %w", err)
	}
	if exists {
		return nil
	}
	if _, err := s.store.Save(misc.WarningFileName, []byte(misc.WarningText), ""); err != nil {
		return fmt.Errorf("failed to write identity warning note: %w", err)
	}
	return nil
}

// Use runs fn with the raw identity bytes. The slice is wiped when fn
// returns and must not be retained.
func (s *Store) Use(fn func(identity []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.buf == nil {
		return tperrors.ErrNotInitialized
	}
	return s.buf.AccessData(fn)
}

// WithIdentity is Use for callbacks that produce a value.
func WithIdentity[T any](s *Store, fn func(identity []byte) (T, error)) (T, error) {
	var result T
	err := s.Use(func(identity []byte) error {
		var err error
		result, err = fn(identity)
		return err
	})
	return result, err
}

// State reports how the current identity was obtained.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Path is where the wrapped identity lives.
func (s *Store) Path() string {
	return s.store.Path(misc.IdentityFileName)
}

// WarningPath is where the irrecoverability note lives.
func (s *Store) WarningPath() string {
	return s.store.Path(misc.WarningFileName)
}

// Close wipes the in-memory identity. The store can be initialized again.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buf != nil {
		s.buf.Dispose()
		s.buf = nil
	}
	s.state = NotLoaded
	return nil
}

func (s *Store) logAudit(requestID, action string, err error, metadata map[string]interface{}) {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadata["request_id"] = requestID
	if err != nil {
		metadata["error"] = err.Error()
	}
	if auditErr := s.audit.Log(action, err == nil, metadata); auditErr != nil {
		s.reporter.Warnf("audit logging failed for action %s: %v", action, auditErr)
	}
}

func newRequestID() string {
	return fmt.Sprintf("id_%d", time.Now().UnixNano())
}

type discardReporter struct{}

func (discardReporter) Warnf(string, ...any)     {}
func (discardReporter) Errorf(string, ...any)    {}
func (discardReporter) Criticalf(string, ...any) {}
