package persist

import (
	"fmt"
	"path/filepath"
	"strings"
)

// NewStore factory function to create storage backends
func NewStore(config StoreConfig) (Store, error) {
	switch config.Type {
	case StoreTypeFileSystem, "":
		basePath, ok := config.Config["base_path"].(string)
		if !ok || basePath == "" {
			return nil, fmt.Errorf("filesystem storage requires 'base_path' in config")
		}
		return NewFileSystemStore(basePath)

	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}

// validateName keeps stored names inside the store's directory
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if strings.Contains(name, "..") ||
		strings.ContainsAny(name, `/\`) ||
		name != filepath.Base(name) {
		return fmt.Errorf("name %q contains invalid characters", name)
	}

	if len(name) > 255 {
		return fmt.Errorf("name too long (max 255 characters)")
	}

	return nil
}
