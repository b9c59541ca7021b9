// Package storage keeps uploaded files on the local filesystem.
//
// Files are addressed by slash-separated keys relative to the media root,
// e.g. "resumes/6a1e...pdf". Keys never escape the root.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a key has no file behind it.
	ErrNotFound = errors.New("storage: file not found")

	// ErrInvalidKey is returned for empty, absolute or escaping keys.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// File is an opened stored file.
type File struct {
	io.ReadSeekCloser

	Key     string
	Name    string
	Size    int64
	ModTime time.Time
}

// LocalStorage stores files under a root directory.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates the root directory if needed.
func NewLocalStorage(root string) (*LocalStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media root %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media root %q: %w", abs, err)
	}
	return &LocalStorage{root: abs}, nil
}

// Root is the absolute media root.
func (s *LocalStorage) Root() string {
	return s.root
}

func (s *LocalStorage) resolve(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Save writes r to key, replacing any existing file. A partially written
// file is removed on error.
func (s *LocalStorage) Save(key string, r io.Reader) (err error) {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %q: %w", key, err)
	}

	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", key, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close %q: %w", key, cerr)
		}
		if err != nil {
			_ = os.Remove(full)
		}
	}()

	if _, err = io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

// Open opens key for reading. The caller closes the returned file.
func (s *LocalStorage) Open(key string) (*File, error) {
	full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open %q: %w", key, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat %q: %w", key, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return &File{
		ReadSeekCloser: f,
		Key:            key,
		Name:           path.Base(key),
		Size:           info.Size(),
		ModTime:        info.ModTime(),
	}, nil
}

// Copy duplicates src into dst.
func (s *LocalStorage) Copy(src, dst string) error {
	in, err := s.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return s.Save(dst, in)
}

// Remove deletes key. Removing a missing key is not an error.
func (s *LocalStorage) Remove(key string) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	return nil
}

