// Package storageio provides the raw filesystem primitives the adapters are
// built on. Every primitive reports an absent path with an error wrapping
// fs.ErrNotExist, see IsNotFound.
package storageio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"persistor/internal/core/domain"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/afero"
)

const (
	defaultFilePermissions = os.FileMode(0644)
	defaultDirPermissions  = os.FileMode(0755)

	tempSuffix = ".tmp"
)

type Store struct {
	fs afero.Fs
}

// New returns a Store over fsys. A nil fsys means the operating system filesystem.
func New(fsys afero.Fs) *Store {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Store{fs: fsys}
}

// Fs exposes the underlying filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// IsNotFound reports whether err means the path does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// IsHidden reports whether a directory entry is hidden, which includes the
// temp files written by WriteJSON.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// ReadJSON reads and decodes the JSON document at path. Numbers are normalised
// with domain.Normalise.
func (s *Store) ReadJSON(path string) (any, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return domain.Normalise(value), nil
}

// WriteJSON encodes v and replaces the file at path. The data goes to a
// hidden temp file beside path first, so readers never see a partial document.
// If the parent directory is missing the returned error satisfies IsNotFound.
func (s *Store) WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tempID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("write %s: could not generate temp name: %w", path, err)
	}
	dir, base := filepath.Split(path)
	tempPath := filepath.Join(dir, "."+base+"."+tempID.String()+tempSuffix)

	if err := afero.WriteFile(s.fs, tempPath, data, defaultFilePermissions); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := s.fs.Rename(tempPath, path); err != nil {
		// best effort, the temp file is hidden from listings anyway
		_ = s.fs.Remove(tempPath)
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// List returns the entry names of dir in lexical order.
func (s *Store) List(dir string) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	return names, nil
}

// MakeDirs creates dir and any missing parents.
func (s *Store) MakeDirs(dir string) error {
	if err := s.fs.MkdirAll(dir, defaultDirPermissions); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// RemoveFile deletes a single file. Removing a missing file succeeds.
func (s *Store) RemoveFile(path string) error {
	if err := s.fs.Remove(path); err != nil && !IsNotFound(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// RemovePath deletes path and everything below it. A missing path succeeds.
func (s *Store) RemovePath(path string) error {
	if err := s.fs.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
