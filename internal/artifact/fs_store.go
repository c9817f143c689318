package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FSStore keeps artifacts under a root directory, one directory per ref
type FSStore struct {
	root string
}

// NewFSStore creates the root directory if needed
func NewFSStore(root string) (*FSStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("artifact root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact root %s: %w", root, err)
	}
	return &FSStore{root: root}, nil
}

// Root returns the root directory
func (s *FSStore) Root() string {
	return s.root
}

func (s *FSStore) Put(ctx context.Context, ref, path string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ref, path, err := normalize(ref, path)
	if err != nil {
		return err
	}
	full := filepath.Join(s.root, filepath.FromSlash(ref), filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact %s/%s: %w", ref, path, err)
	}
	return os.Rename(tmp, full)
}

func (s *FSStore) Get(ctx context.Context, ref, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref, path, err := normalize(ref, path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(ref), filepath.FromSlash(path)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", ref, path, ErrNotFound)
	}
	return data, err
}

func (s *FSStore) List(ctx context.Context, ref string) ([]string, error) {
	ref = strings.Trim(strings.TrimSpace(ref), "/")
	if ref == "" {
		return nil, fmt.Errorf("artifact ref is required")
	}
	base := filepath.Join(s.root, filepath.FromSlash(ref))
	out := make([]string, 0, 16)
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// PutDir uploads every regular file under dir, keeping relative paths
func PutDir(ctx context.Context, s Store, ref, dir, prefix string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if err := s.Put(ctx, ref, strings.TrimLeft(prefix+"/"+filepath.ToSlash(rel), "/"), data); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}
