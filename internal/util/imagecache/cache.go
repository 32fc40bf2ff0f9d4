// Package imagecache stores edited images on disk keyed by a content hash.
package imagecache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// CacheOptions configures image caching behavior.
type CacheOptions struct {
	// CacheDir is the directory where images will be cached.
	// If empty, defaults to ~/.cache/swatch/edits
	CacheDir string

	// AllowOverwrite determines if existing cached files can be overwritten.
	// Default: false (reuse existing cached files).
	AllowOverwrite bool
}

// Cache is a flat directory of result files named by key.
type Cache struct {
	dir            string
	allowOverwrite bool
}

// DefaultCacheDir returns the default cache directory path.
func DefaultCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		// Fallback to home directory if cache dir not available.
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to determine cache directory: %w", err)
		}
		return filepath.Join(home, ".cache", "swatch", "edits"), nil
	}
	return filepath.Join(cacheDir, "swatch", "edits"), nil
}

// New opens (and creates if needed) a cache directory.
func New(opts CacheOptions) (*Cache, error) {
	dir := opts.CacheDir
	if dir == "" {
		defaultDir, err := DefaultCacheDir()
		if err != nil {
			return nil, err
		}
		dir = defaultDir
	}

	if err := os.MkdirAll(dir, 0o755); err != nil { // #nosec G301 - Cache directory needs standard permissions
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Cache{dir: dir, allowOverwrite: opts.AllowOverwrite}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Key derives a deterministic cache key from the given parts.
// Parts are length-prefixed so ("ab","c") and ("a","bc") differ.
func Key(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:", len(p))
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup returns the cached bytes for key, if present.
func (c *Cache) Lookup(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached image: %w", err)
	}
	return data, true, nil
}

// Store writes data under key. Existing entries are kept unless the cache
// allows overwrites.
func (c *Cache) Store(key string, data []byte) error {
	path := c.path(key)
	if !c.allowOverwrite {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}

	// Write to a temp file first so readers never see a partial entry.
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cached image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cached image: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to commit cached image: %w", err)
	}
	return nil
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, filepath.Base(key))
}
