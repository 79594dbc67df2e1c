package kvstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/2beens/fittrack/pkg"
)

const diskValueExt = ".kv"

var _ Store = (*DiskStore)(nil)
var _ Lister = (*DiskStore)(nil)

// DiskStore keeps one file per key under rootPath. File names are the
// base64url encoded keys, so any key is a valid file name.
type DiskStore struct {
	rootPath string
	mutex    sync.RWMutex
}

func NewDiskStore(rootPath string) (*DiskStore, error) {
	if rootPath == "" {
		return nil, errors.New("root path cannot be empty")
	}
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("create root dir: %w", err)
	}
	if _, err := pkg.PathExists(rootPath, true); err != nil {
		return nil, fmt.Errorf("check root dir: %w", err)
	}
	return &DiskStore{
		rootPath: rootPath,
	}, nil
}

func (s *DiskStore) keyPath(key string) string {
	return filepath.Join(s.rootPath, base64.RawURLEncoding.EncodeToString([]byte(key))+diskValueExt)
}

func (s *DiskStore) Get(_ context.Context, key string) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	data, err := os.ReadFile(s.keyPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("read value [%s]: %w", key, err)
	}
	return pkg.BytesToString(data), nil
}

// Set writes to a temp file first and renames it over the old value, so a
// crash mid-write never leaves a truncated collection behind.
func (s *DiskStore) Set(_ context.Context, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	tmp, err := os.CreateTemp(s.rootPath, "tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write value [%s]: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.keyPath(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename value file [%s]: %w", key, err)
	}
	return nil
}

func (s *DiskStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entries, err := os.ReadDir(s.rootPath)
	if err != nil {
		return nil, fmt.Errorf("read root dir: %w", err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, diskValueExt) {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, diskValueExt))
		if err != nil {
			// not ours
			continue
		}
		if key := string(raw); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
