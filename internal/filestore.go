package internal

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const dirStoreExt = ".json"

// DirStore is a KeyValueStore keeping one <key>.json file per key in a directory
type DirStore struct {
	dir string
	mu  sync.Mutex
}

// NewDirStore creates a directory-backed store rooted at dir
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// EnsureDir ensures the storage directory exists
func (s *DirStore) EnsureDir() error {
	return os.MkdirAll(s.dir, 0755)
}

// Dir returns the storage directory path
func (s *DirStore) Dir() string {
	return s.dir
}

// PathFor returns the file holding key
func (s *DirStore) PathFor(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+dirStoreExt)
}

// Get returns the value stored under key
func (s *DirStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.PathFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StorageError{Op: "get", Key: key, Err: err}
	}
	return string(data), true, nil
}

// Set writes value under key. The write goes through a temp file and a
// rename so readers never observe a partial value.
func (s *DirStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.EnsureDir(); err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	if err := os.Rename(tmp.Name(), s.PathFor(key)); err != nil {
		os.Remove(tmp.Name())
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (s *DirStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.PathFor(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Keys returns all keys starting with prefix, sorted
func (s *DirStore) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "keys", Key: prefix, Err: err}
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, dirStoreExt) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, dirStoreExt))
		if err != nil {
			LogDebug("Skipping unreadable storage file %s: %v", name, err)
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op for the directory store
func (s *DirStore) Close() error {
	return nil
}
