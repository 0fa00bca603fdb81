// Package util provides common file helpers for sprout.
package util

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// AtomicWriteFile writes data to path on fsys by first writing a temporary
// file in the same directory, syncing it, then renaming it over path.
// Readers never observe a partially written file.
func AtomicWriteFile(fsys afero.Fs, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	// Same directory, so the rename stays on one filesystem.
	tmp, err := afero.TempFile(fsys, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = fsys.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fsys.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := fsys.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp to final: %w", err)
	}

	success = true
	return nil
}
