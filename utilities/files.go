package utilities

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// Exists reports if anything is at the path, following symlinks
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports if the path resolves to a directory
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// WriteFileAtomic replaces the file at path with data, creating parent folders as needed.
// Readers see either the old or the new contents, never a partial write
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("couldn't create folder for %s - %w", path, err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("couldn't write %s - %w", path, err)
	}
	return nil
}
