package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
)

const (
	// MinFreeSpace is the minimum free space required for write operations (10MB).
	MinFreeSpace = 10 * 1024 * 1024
)

// ErrDiskFull is returned when a write cannot complete for lack of space.
var ErrDiskFull = errors.New("disk full")

// Files is the host file access the file-backed backends depend on.
type Files interface {
	// ReadFile returns the whole file. A missing file yields an error
	// matching fs.ErrNotExist.
	ReadFile(path string) ([]byte, error)
	// WriteFile creates or atomically replaces the file.
	WriteFile(path string, data []byte) error
	// EnsureDir creates path and its parents if missing.
	EnsureDir(path string) error
}

// aferoFiles implements Files on an afero filesystem.
type aferoFiles struct {
	fs         afero.Fs
	checkSpace func(dir string) error
}

// NewFiles returns Files backed by fsys. Use afero.NewMemMapFs for tests.
func NewFiles(fsys afero.Fs) Files {
	return &aferoFiles{fs: fsys}
}

// OSFiles returns Files on the real filesystem with a free-space guard.
func OSFiles() Files {
	return &aferoFiles{fs: afero.NewOsFs(), checkSpace: CheckDiskSpace}
}

func (f *aferoFiles) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(f.fs, path)
}

func (f *aferoFiles) EnsureDir(path string) error {
	if err := f.fs.MkdirAll(path, 0o700); err != nil {
		if isDiskFullError(err) {
			return fmt.Errorf("mkdir %s: %w", path, ErrDiskFull)
		}
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// WriteFile writes to a temp file in the target directory, syncs it and
// renames it over path, so readers see either the old or new content.
func (f *aferoFiles) WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if f.checkSpace != nil {
		if err := f.checkSpace(dir); err != nil {
			return err
		}
	}
	if err := f.EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := afero.TempFile(f.fs, dir, ".taskmap-*.tmp")
	if err != nil {
		return wrapWriteError("create temp file", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = f.fs.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return wrapWriteError("write", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return wrapWriteError("sync", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := f.fs.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := f.fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func wrapWriteError(op string, err error) error {
	if isDiskFullError(err) {
		return fmt.Errorf("%s: %w", op, ErrDiskFull)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// IsNotExist reports whether err means the file does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err)
}

// isDiskFullError checks if an error indicates disk full condition.
func isDiskFullError(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}

// CheckDiskSpace returns ErrDiskFull when the filesystem holding path has
// less than MinFreeSpace available. Unknown free space is not an error.
func CheckDiskSpace(path string) error {
	free, ok := freeBytes(existingParent(path))
	if !ok {
		return nil
	}
	if free < MinFreeSpace {
		return fmt.Errorf("insufficient disk space: %d MB free, need at least %d MB: %w",
			free/(1024*1024), MinFreeSpace/(1024*1024), ErrDiskFull)
	}
	return nil
}

func existingParent(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
