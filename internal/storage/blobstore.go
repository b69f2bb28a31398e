// Package storage keeps attachment blobs in a single directory. Blob names
// are a random UUID in hex plus the original extension, so concurrent
// writers never collide and the original filename lives only in the
// database.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrInvalidName = errors.New("invalid blob name")
)

// BlobStore is a directory of attachment files.
type BlobStore struct {
	dir string
}

// SaveResult describes a written blob.
type SaveResult struct {
	Name string
	Size int64
}

// NewBlobStore creates dir if needed.
func NewBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload folder %s: %w", dir, err)
	}
	return &BlobStore{dir: dir}, nil
}

func (s *BlobStore) Dir() string {
	return s.dir
}

// NewName returns a fresh storage name keeping the extension of original.
func NewName(original string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	if len(ext) > 16 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return strings.ReplaceAll(uuid.New().String(), "-", "") + ext
}

// path resolves name inside the store, rejecting anything that could
// escape the directory.
func (s *BlobStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name), nil
}

// Save streams r to a new blob: temp file, fsync, atomic rename. The temp
// file is removed on any error.
func (s *BlobStore) Save(r io.Reader, original string) (*SaveResult, error) {
	name := NewName(original)
	full, err := s.path(name)
	if err != nil {
		return nil, err
	}
	tmp := full + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create temp blob: %w", err)
	}

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, fmt.Errorf("write blob: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, fmt.Errorf("fsync blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("rename blob: %w", err)
	}

	return &SaveResult{Name: name, Size: size}, nil
}

// Open returns a reader for name. The caller closes it.
func (s *BlobStore) Open(name string) (*os.File, error) {
	full, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("open blob %s: %w", name, err)
	}
	return f, nil
}

// Path returns the absolute location of name.
func (s *BlobStore) Path(name string) (string, error) {
	return s.path(name)
}

// Delete removes name. Deleting a missing blob is not an error.
func (s *BlobStore) Delete(name string) error {
	full, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", name, err)
	}
	return nil
}

// Exists reports whether name is present.
func (s *BlobStore) Exists(name string) bool {
	full, err := s.path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}
