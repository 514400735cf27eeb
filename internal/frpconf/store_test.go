package frpconf

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestStore_WriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frpc.toml")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path)
	if err := s.Write(webAndSSH); err != nil {
		t.Fatalf("Write: %v", err)
	}

	text, info, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	assert.Equal(t, text, webAndSSH)
	assert.Equal(t, info.Mode().Perm(), fs.FileMode(0o600))

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, len(entries), 1)
}

func TestStore_ReadMissing(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.toml"))
	_, _, err := s.Read()

	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StorageError", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want fs.ErrNotExist", err)
	}
	assert.Equal(t, s.Exists(), false)
}

func TestStore_WriteFailureLeavesNoFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "no", "such", "dir", "frpc.toml"))
	err := s.Write("serverAddr = \"a\"\n")

	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StorageError", err)
	}
	assert.Equal(t, s.Exists(), false)
}
