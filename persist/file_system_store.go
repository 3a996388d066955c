package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/muhammetozeski/TPMPass/internal/crypto"
	"github.com/muhammetozeski/TPMPass/internal/debug"
	tperrors "github.com/muhammetozeski/TPMPass/internal/errors"
	"github.com/muhammetozeski/TPMPass/internal/misc"
)

const (
	storeInfoName = "store.json"
	lockFileName  = ".store.lock"
)

// FileSystemStore implements Store for a private local directory with
// atomic writes and optimistic concurrency control.
//
// Writers are serialized by mu inside the process and by an exclusive lock
// on basePath/.store.lock across processes, so a version check and the write
// that depends on it are never interleaved with another writer.
type FileSystemStore struct {
	mu       sync.Mutex
	fileLock *flock.Flock
	basePath string
	info     string // basePath/store.json
}

// StoreInfo records when the directory was set up and last used
type StoreInfo struct {
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	LastAccess time.Time `json:"last_access"`
	Structure  string    `json:"structure_version"`
}

// NewFileSystemStore initializes and returns a new instance of FileSystemStore
func NewFileSystemStore(basePath string) (*FileSystemStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	fs := &FileSystemStore{
		basePath: basePath,
		info:     filepath.Join(basePath, storeInfoName),
		fileLock: flock.New(filepath.Join(basePath, lockFileName)),
	}

	if err := os.MkdirAll(basePath, misc.DirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", basePath, err)
	}

	if err := fs.initializeStoreInfo(); err != nil {
		return nil, fmt.Errorf("failed to initialize store info: %w", err)
	}

	return fs, nil
}

func (fs *FileSystemStore) initializeStoreInfo() error {
	if _, err := os.Stat(fs.info); os.IsNotExist(err) {
		info := StoreInfo{
			Version:    "1.0.0",
			CreatedAt:  time.Now(),
			LastAccess: time.Now(),
			Structure:  "v1",
		}

		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}

		return WriteFile(fs.info, data, misc.FilePermissions)
	}
	return nil
}

// Save with optimistic concurrency control
func (fs *FileSystemStore) Save(name string, data []byte, expectedVersion string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if data == nil {
		return "", fmt.Errorf("data for %s cannot be nil", name)
	}

	unlock, err := fs.lock()
	if err != nil {
		return "", err
	}
	defer unlock()

	path := filepath.Join(fs.basePath, name)

	if expectedVersion != "" {
		currentVersion, err := getFileVersion(path)
		if err != nil {
			return "", fmt.Errorf("failed to check current version: %w", err)
		}
		want := expectedVersion
		if want == VersionAbsent {
			want = ""
		}
		if currentVersion != want {
			return "", ConcurrencyError{
				ExpectedVersion: expectedVersion,
				ActualVersion:   currentVersion,
				Operation:       "Save " + name,
			}
		}
	}

	if err := WriteFile(path, data, misc.FilePermissions); err != nil {
		return "", err
	}

	debug.Print("stored %d bytes in %s\n", len(data), path)
	return calculateFileVersion(data), nil
}

func (fs *FileSystemStore) Load(name string) (*VersionedData, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	path := filepath.Join(fs.basePath, name)

	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", tperrors.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	return &VersionedData{
		Data:      data,
		Version:   calculateFileVersion(data),
		Timestamp: fileInfo.ModTime(),
	}, nil
}

func (fs *FileSystemStore) Exists(name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	return fileExists(filepath.Join(fs.basePath, name))
}

func (fs *FileSystemStore) Path(name string) string {
	return filepath.Join(fs.basePath, name)
}

func (fs *FileSystemStore) GetType() string {
	return string(StoreTypeFileSystem)
}

// Health and utilities
func (fs *FileSystemStore) Ping() error {
	_, err := os.Stat(fs.basePath)
	return err
}

func (fs *FileSystemStore) Close() error {
	if err := fs.fileLock.Close(); err != nil {
		debug.Print("failed to release %s: %v\n", lockFileName, err)
	}
	if infoData, err := os.ReadFile(fs.info); err == nil {
		var info StoreInfo
		if err := json.Unmarshal(infoData, &info); err == nil {
			info.LastAccess = time.Now()
			if updatedData, err := json.MarshalIndent(info, "", "  "); err == nil {
				_ = WriteFile(fs.info, updatedData, misc.FilePermissions)
			}
		}
	}
	return nil
}

// lock takes the in-process mutex and then the directory lock file
func (fs *FileSystemStore) lock() (func(), error) {
	fs.mu.Lock()
	if err := fs.fileLock.Lock(); err != nil {
		fs.mu.Unlock()
		return nil, fmt.Errorf("failed to lock %s: %w", fs.basePath, err)
	}
	return func() {
		if err := fs.fileLock.Unlock(); err != nil {
			debug.Print("failed to unlock %s: %v\n", fs.basePath, err)
		}
		fs.mu.Unlock()
	}, nil
}

// Helper methods for versioning support
func getFileVersion(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil // File doesn't exist, version is empty
		}
		return "", err
	}
	return calculateFileVersion(data), nil
}

func calculateFileVersion(data []byte) string {
	return crypto.CalculateChecksum(data)
}

// WriteFile replaces path atomically: the data goes to a synced temp file in
// the same directory which is then renamed over the target
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err = tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err = tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err = tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err = os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
