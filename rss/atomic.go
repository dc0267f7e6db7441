package rss

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileMode is the permission of generated feed files.
const FileMode os.FileMode = 0644

// WriteFileAtomic writes data to a temporary file next to path and renames it
// over path, so readers never observe a partially written file.
func WriteFileAtomic(fs afero.Fs, path string, data []byte) (err error) {
	tmp, err := afero.TempFile(fs, filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			fs.Remove(tmpPath) // Best effort cleanup
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = fs.Chmod(tmpPath, FileMode); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err = fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
