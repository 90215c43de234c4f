// Package osfilesystem writes report files to the local disk.
package osfilesystem

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/user/framedecode/pkg/ports"
)

// FileSystem implements ports.FileSystem using the os package. Files are
// written to a temporary name and renamed into place, so readers never
// see a partial snapshot or summary.
type FileSystem struct {
	dirMode  os.FileMode
	fileMode os.FileMode
}

// New creates a new FileSystem.
func New() *FileSystem {
	return &FileSystem{dirMode: 0755, fileMode: 0644}
}

// WriteFile atomically replaces path with data, creating parent
// directories as needed.
func (f *FileSystem) WriteFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, f.dirMode); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Chmod(f.fileMode); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// MkdirAll creates a directory and all parent directories.
func (f *FileSystem) MkdirAll(path string) error {
	return os.MkdirAll(path, f.dirMode)
}

// Exists checks if a file or directory exists.
func (f *FileSystem) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

var _ ports.FileSystem = (*FileSystem)(nil)
