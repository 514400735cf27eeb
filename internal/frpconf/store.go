package frpconf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store is the on-disk home of one document. It keeps no copy of the
// contents; every Read goes back to the file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Read returns the current text together with the file's metadata.
func (s *Store) Read() (string, fs.FileInfo, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return "", nil, &StorageError{Op: "stat", Path: s.path, Err: err}
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", nil, &StorageError{Op: "read", Path: s.path, Err: err}
	}
	return string(data), info, nil
}

// Exists reports whether the document file is present.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && info.Mode().IsRegular()
}

// Write replaces the document atomically: the new text goes to a temporary
// file in the same directory which is synced and then renamed over the
// original. On failure the original file is untouched.
func (s *Store) Write(text string) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return &StorageError{Op: "stat", Path: s.path, Err: err}
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	tmpPath := tmp.Name()

	fail := func(op string, err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return &StorageError{Op: op, Path: s.path, Err: err}
	}

	if _, err := tmp.WriteString(text); err != nil {
		return fail("write", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return fail("chmod", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &StorageError{Op: "close", Path: s.path, Err: err}
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return &StorageError{Op: "rename", Path: s.path, Err: fmt.Errorf("renaming into place: %w", err)}
	}

	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}
