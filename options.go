package tpmpass

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/muhammetozeski/TPMPass/audit"
	"github.com/muhammetozeski/TPMPass/internal/membuf"
	"github.com/muhammetozeski/TPMPass/internal/misc"
	"github.com/muhammetozeski/TPMPass/scan"
)

// Options configures Open.
//
// Only DataDir is required. Everything else has a working default: the
// profile secret lives in a 0600 file next to the identity, memory is not
// locked process-wide, auditing is off and no scan gate runs.
type Options struct {
	// DataDir holds the wrapped master identity, its warning note and the
	// audit trail. It is created with mode 0700.
	//
	// Moving or deleting this directory makes every file encrypted with the
	// identity in it permanently unrecoverable.
	DataDir string `json:"data_dir"`

	// ProfileSecretPath is the file holding the 32-byte secret that binds
	// wrapped data to this user. Ignored when UseKeyring is set.
	// Defaults to DataDir/profile.key.
	ProfileSecretPath string `json:"profile_secret_path,omitempty"`

	// UseKeyring stores the profile secret in the OS keyring under
	// KeyringService instead of a file.
	UseKeyring     bool   `json:"use_keyring,omitempty"`
	KeyringService string `json:"keyring_service,omitempty"`

	// LockMemory asks the OS to keep every page of the process out of swap
	// (mlockall). Protected buffers pin their own pages regardless; this adds
	// the Go heap, where transient plaintext copies live.
	LockMemory bool `json:"lock_memory,omitempty"`

	// Audit configures the audit trail. Nil disables auditing.
	Audit *audit.Config `json:"audit,omitempty"`

	// ScanGate runs before every decryption. Nil means no scan.
	ScanGate scan.Gate `json:"-"`

	// Reporter receives warnings that must not abort an operation, such as a
	// failure to pin memory or the regeneration of a corrupt identity.
	Reporter membuf.Reporter `json:"-"`
}

// DefaultOptions places everything under the user's config directory, e.g.
// ~/.config/tpmpass on Linux.
func DefaultOptions() (Options, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return Options{}, fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return Options{DataDir: filepath.Join(dir, "tpmpass")}, nil
}

// FileAudit returns an audit configuration writing JSONL under dataDir.
func FileAudit(dataDir string) *audit.Config {
	return &audit.Config{
		Enabled: true,
		Type:    audit.FileAuditType,
		Options: map[string]interface{}{
			"file_path": filepath.Join(dataDir, misc.AuditFileName),
		},
	}
}

// ParentScan returns a gate that scans the parent process with command
// (scan.DefaultCommand when empty).
func ParentScan(command []string, timeout time.Duration) scan.Gate {
	return scan.NewParentProcessScanner(command, timeout)
}

// Validate validates the Options configuration
func (o Options) Validate() error {
	if o.DataDir == "" {
		return fmt.Errorf("%w: DataDir must be provided", ErrArgument)
	}
	if o.UseKeyring && o.KeyringService == "" {
		return fmt.Errorf("%w: KeyringService must be provided when UseKeyring is set", ErrArgument)
	}
	return nil
}

func (o Options) profileSecretPath() string {
	if o.ProfileSecretPath != "" {
		return o.ProfileSecretPath
	}
	return filepath.Join(o.DataDir, "profile.key")
}
