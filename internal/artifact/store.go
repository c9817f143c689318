// Package artifact persists the files a simulation stage leaves behind, keyed by an
// artifact reference and a slash-separated path inside it.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when an artifact file does not exist
var ErrNotFound = errors.New("artifact not found")

// Store defines operations for persisting stage artifacts.
type Store interface {
	Put(ctx context.Context, ref, path string, content []byte) error
	Get(ctx context.Context, ref, path string) ([]byte, error)
	List(ctx context.Context, ref string) ([]string, error)
}

// ListDir returns the names of the files directly under dir within ref, sorted
func ListDir(ctx context.Context, s Store, ref, dir string) ([]string, error) {
	paths, err := s.List(ctx, ref)
	if err != nil {
		return nil, err
	}
	prefix := strings.Trim(dir, "/") + "/"
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || rest == "" || strings.Contains(rest, "/") {
			continue
		}
		out = append(out, rest)
	}
	sort.Strings(out)
	return out, nil
}

func normalize(ref, path string) (string, string, error) {
	ref = strings.Trim(strings.TrimSpace(ref), "/")
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if ref == "" {
		return "", "", fmt.Errorf("artifact ref is required")
	}
	if path == "" {
		return "", "", fmt.Errorf("path is required")
	}
	for _, seg := range strings.Split(ref+"/"+path, "/") {
		if seg == ".." || seg == "." {
			return "", "", fmt.Errorf("path %q: relative segments are not allowed", ref+"/"+path)
		}
	}
	return ref, path, nil
}

func objectKey(ref, path string) string {
	return ref + "/" + path
}

// MemoryStore keeps artifacts in memory
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, ref, path string, content []byte) error {
	ref, path, err := normalize(ref, path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[objectKey(ref, path)] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, ref, path string) ([]byte, error) {
	ref, path, err := normalize(ref, path)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[objectKey(ref, path)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", ref, path, ErrNotFound)
	}
	return append([]byte(nil), raw...), nil
}

func (s *MemoryStore) List(_ context.Context, ref string) ([]string, error) {
	ref = strings.Trim(strings.TrimSpace(ref), "/")
	if ref == "" {
		return nil, fmt.Errorf("artifact ref is required")
	}
	prefix := ref + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, 16)
	for key := range s.data {
		if rest, ok := strings.CutPrefix(key, prefix); ok {
			out = append(out, rest)
		}
	}
	sort.Strings(out)
	return out, nil
}
