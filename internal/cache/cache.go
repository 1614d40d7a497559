// Package cache keeps fetched source payloads on disk for a limited time.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// DefaultTTL is the default cache time-to-live
const DefaultTTL = 24 * time.Hour

// Cache stores payloads as files named after a hash of their key
type Cache struct {
	Dir string
	TTL time.Duration

	now func() time.Time
}

// New creates a cache under the user cache directory for appName
func New(appName string, ttl time.Duration) (*Cache, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}
	return NewAt(filepath.Join(base, appName), ttl)
}

// NewAt creates a cache in dir
func NewAt(dir string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{Dir: dir, TTL: ttl, now: time.Now}, nil
}

// Path returns the file backing key
func (c *Cache) Path(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(c.Dir, hex.EncodeToString(hash[:16])+".cache")
}

// Get returns the payload stored for key unless it is missing or older than the TTL
func (c *Cache) Get(key string) ([]byte, bool) {
	path := c.Path(key)

	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if c.now().Sub(info.ModTime()) > c.TTL {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores the payload for key
func (c *Cache) Set(key string, data []byte) error {
	tmp, err := os.CreateTemp(c.Dir, "tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.Path(key))
}

// Clear removes every cached payload
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.Dir, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
