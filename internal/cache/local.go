// Package cache keeps local copies of stored objects on disk.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidName is returned for names that could escape the cache directory.
	ErrInvalidName = errors.New("invalid cache name")
	// ErrNotCached is returned when no local copy exists.
	ErrNotCached = errors.New("not cached")
)

// LocalCache stores files under a single root directory. Saves are atomic so concurrent
// writers of the same name never expose a partially written file; the last rename wins.
type LocalCache struct {
	dir string
}

// New opens the cache rooted at dir, creating it when missing.
func New(dir string) (*LocalCache, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", abs, err)
	}
	return &LocalCache{dir: abs}, nil
}

func (c *LocalCache) Dir() string {
	return c.dir
}

// MaxFileNameBytes is the longest file name accepted. It matches both the metadata
// column and the usual filesystem limit for one path component.
const MaxFileNameBytes = 255

// ValidateFileName rejects file names that are empty, too long or carry path syntax.
func ValidateFileName(name string) error {
	switch {
	case name == "", name == ".", name == "..", len(name) > MaxFileNameBytes:
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Name returns the cache name of an owner's file.
func Name(owner uint64, fileName string) string {
	return strconv.FormatUint(owner, 10) + "/" + fileName
}

// ParseName splits a cache name back into owner and file name.
func ParseName(name string) (uint64, string, error) {
	ownerPart, fileName, ok := strings.Cut(name, "/")
	if !ok {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	owner, err := strconv.ParseUint(ownerPart, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := ValidateFileName(fileName); err != nil {
		return 0, "", err
	}
	return owner, fileName, nil
}

// Path returns the absolute on-disk path for name.
func (c *LocalCache) Path(name string) (string, error) {
	if _, _, err := ParseName(name); err != nil {
		return "", err
	}
	full := filepath.Join(c.dir, filepath.FromSlash(name))
	if !strings.HasPrefix(full, c.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return full, nil
}

// Exists reports whether a regular file is cached under name.
func (c *LocalCache) Exists(name string) bool {
	full, err := c.Path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}

// Save writes data under name through a temp file, fsync and rename. It returns the
// final path and its modification time in unix seconds.
func (c *LocalCache) Save(name string, data []byte) (string, int64, error) {
	full, err := c.Path(name)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", 0, fmt.Errorf("create cache subdir: %w", err)
	}

	tmpPath := filepath.Join(filepath.Dir(full), "."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, full); err != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("rename into cache: %w", err)
	}

	info, err := os.Stat(full)
	if err != nil {
		return "", 0, fmt.Errorf("stat cached file: %w", err)
	}
	return full, info.ModTime().Unix(), nil
}

// Read returns the cached bytes or ErrNotCached.
func (c *LocalCache) Read(name string) ([]byte, error) {
	full, err := c.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotCached, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read cached file %s: %w", name, err)
	}
	return data, nil
}

// Delete removes the cached file. A missing file is not an error.
func (c *LocalCache) Delete(name string) error {
	full, err := c.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete cached file %s: %w", name, err)
	}
	return nil
}
