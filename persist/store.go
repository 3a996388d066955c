package persist

import (
	"fmt"
	"time"
)

// VersionedData represents data with its version information
type VersionedData struct {
	Data      []byte
	Version   string // content hash
	Timestamp time.Time
}

// VersionAbsent can be passed as expectedVersion to require that nothing has
// been stored under the name yet.
const VersionAbsent = "absent"

// Store defines the interface for persisting TPMPass state such as the
// protected master identity and its warning note. Everything that is secret
// is already wrapped by the caller before it reaches a Store.
type Store interface {
	// Save writes data under name.
	// Parameters:
	// - name: a plain file name, no path separators.
	// - data: the bytes to store.
	// - expectedVersion: "" to overwrite unconditionally, VersionAbsent to
	//   require the name to be unused, or a version returned by Load/Save.
	// Returns:
	// - The new version of the stored data.
	// - A ConcurrencyError if the current version differs from expectedVersion.
	Save(name string, data []byte, expectedVersion string) (newVersion string, err error)

	// Load retrieves the data stored under name.
	// Returns:
	// - The data with its version and modification time.
	// - An error wrapping errors.ErrNotFound if nothing is stored under name.
	Load(name string) (*VersionedData, error)

	// Exists checks whether something is stored under name.
	Exists(name string) (bool, error)

	// Path returns a human-readable location for name, for status output.
	Path(name string) string

	// Ping tests that the backing location is usable.
	Ping() error

	// Close closes the store and releases any resources it holds.
	Close() error

	// GetType retrieves the type of store being used.
	GetType() string
}

// StoreConfig provides configuration for different storage backends.
//
// Example usage:
//
//	config := StoreConfig{
//	    Type:   StoreTypeFileSystem,
//	    Config: map[string]interface{}{"base_path": "/home/me/.config/tpmpass"},
//	}
type StoreConfig struct {
	// Type specifies the storage backend to be used.
	Type StoreType `json:"type"`

	// Config contains configuration settings specific to the chosen storage backend.
	Config map[string]interface{} `json:"config"`
}

// StoreType represents the different types of storage backends that can be used.
type StoreType string

const (
	// StoreTypeFileSystem keeps state in a private directory on the local disk.
	StoreTypeFileSystem StoreType = "filesystem"
)

// ConcurrencyError represents version conflict errors
type ConcurrencyError struct {
	ExpectedVersion string
	ActualVersion   string
	Operation       string
}

func (e ConcurrencyError) Error() string {
	return fmt.Sprintf("version conflict in %s: expected version %s, but found %s",
		e.Operation, e.ExpectedVersion, e.ActualVersion)
}
