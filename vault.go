package tpmpass

import (
	"fmt"
	"strings"
	"sync"

	"github.com/muhammetozeski/TPMPass/audit"
	"github.com/muhammetozeski/TPMPass/dataprotect"
	"github.com/muhammetozeski/TPMPass/identity"
	"github.com/muhammetozeski/TPMPass/internal/logging"
	"github.com/muhammetozeski/TPMPass/internal/mem"
	"github.com/muhammetozeski/TPMPass/internal/membuf"
	"github.com/muhammetozeski/TPMPass/persist"
)

// Vault wires the storage, data protection, identity and codec layers
// together for one user profile. Its Codec methods are promoted, so a Vault
// satisfies Service.
type Vault struct {
	*Codec

	mu       sync.Mutex
	store    persist.Store
	identity *identity.Store
	audit    audit.Logger
	reporter membuf.Reporter

	memoryProtectionLevel mem.ProtectionLevel
	memoryLocked          bool
	closed                bool
}

// Open prepares a vault for the current user and loads (or creates) the
// master identity. It is the required startup call; the returned Vault is
// ready for EncryptAndSave and DecryptFile.
//
// Initialization steps:
//  1. Validate options
//  2. Lock process memory if requested (best effort)
//  3. Open the data directory store and check it is usable
//  4. Load or create the profile secret and build the data protector
//  5. Open the audit trail
//  6. Initialize the master identity
//
// A corrupt or foreign identity file is replaced with a fresh identity and
// reported through options.Reporter; it is not an error.
//
// Example:
//
//	opts, _ := tpmpass.DefaultOptions()
//	v, err := tpmpass.Open(opts)
//	if err != nil {
//	    return err
//	}
//	defer v.Close()
//	err = v.EncryptAndSave("hunter2", "github.tpmPassword")
func Open(options Options) (*Vault, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}

	var reporter = options.Reporter
	if reporter == nil {
		reporter = logging.New(false, false)
	}

	v := &Vault{
		reporter:              reporter,
		memoryProtectionLevel: mem.ProtectionNone,
	}

	if options.LockMemory {
		level, err := mem.Lock()
		if err != nil {
			reporter.Warnf("cannot lock process memory: %v; protected buffers are still pinned individually", err)
		} else {
			v.memoryLocked = true
		}
		v.memoryProtectionLevel = level
	}

	store, err := persist.NewStore(persist.StoreConfig{
		Type:   persist.StoreTypeFileSystem,
		Config: map[string]interface{}{"base_path": options.DataDir},
	})
	if err != nil {
		v.unlockMemory()
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	if err = store.Ping(); err != nil {
		_ = store.Close()
		v.unlockMemory()
		return nil, fmt.Errorf("data directory is not usable: %w", err)
	}
	v.store = store

	protector, err := openProtector(options)
	if err != nil {
		_ = store.Close()
		v.unlockMemory()
		return nil, err
	}

	auditLogger, err := audit.NewLogger(options.Audit)
	if err != nil {
		_ = store.Close()
		v.unlockMemory()
		return nil, fmt.Errorf("failed to open audit trail: %w", err)
	}
	v.audit = auditLogger

	v.identity = identity.New(store, protector,
		identity.WithAudit(auditLogger),
		identity.WithReporter(reporter))

	if _, err = v.identity.InitializeMasterIdentity(); err != nil {
		_ = auditLogger.Close()
		_ = store.Close()
		v.unlockMemory()
		return nil, fmt.Errorf("failed to initialize master identity: %w", err)
	}

	codecOpts := []CodecOption{WithAudit(auditLogger), WithReporter(reporter)}
	if options.ScanGate != nil {
		codecOpts = append(codecOpts, WithGate(options.ScanGate))
	}
	v.Codec = NewCodec(v.identity, protector, codecOpts...)

	return v, nil
}

func openProtector(options Options) (*dataprotect.UserScope, error) {
	var src dataprotect.SecretSource = dataprotect.FileSecretSource{Path: options.profileSecretPath()}
	if options.UseKeyring {
		ring, err := dataprotect.OpenKeyring(options.KeyringService)
		if err != nil {
			return nil, fmt.Errorf("failed to open keyring: %w", err)
		}
		src = dataprotect.KeyringSecretSource{Ring: ring}
	}

	protector, err := dataprotect.NewUserScope(src)
	if err != nil {
		return nil, fmt.Errorf("failed to set up data protection: %w", err)
	}
	return protector, nil
}

// Identity returns the master identity store.
func (v *Vault) Identity() *identity.Store {
	return v.identity
}

// GetAudit returns the audit trail.
func (v *Vault) GetAudit() audit.Logger {
	return v.audit
}

// StoreType names the backend holding the master identity.
func (v *Vault) StoreType() string {
	return v.store.GetType()
}

// SecureMemoryProtection describes the process-wide memory lock state.
func (v *Vault) SecureMemoryProtection() string {
	switch v.memoryProtectionLevel {
	case mem.ProtectionNone:
		return "None - only protected buffers are pinned"
	case mem.ProtectionPartial:
		return "Partial - process memory could not be fully locked"
	case mem.ProtectionFull:
		return "Full - process memory locked and protected from swapping"
	default:
		return "Unknown"
	}
}

// Close wipes the in-memory identity and releases every resource. Buffers
// already returned by DecryptFile stay owned by their callers.
func (v *Vault) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil
	}
	v.closed = true

	var errs []error
	if err := v.identity.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close identity: %w", err))
	}
	if err := v.audit.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close audit logger: %w", err))
	}
	if err := v.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}
	v.unlockMemory()

	return combinerErr(errs)
}

func (v *Vault) unlockMemory() {
	if !v.memoryLocked {
		return
	}
	if err := mem.Unlock(); err != nil {
		v.reporter.Warnf("%v", err)
	}
	v.memoryLocked = false
}

func combinerErr(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var sb strings.Builder
	for _, err := range errs {
		sb.WriteString(err.Error())
		sb.WriteString("; ")
	}
	return fmt.Errorf("vault close errors: %s", strings.TrimRight(sb.String(), "; "))
}
