package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Backend stores index artifacts by key. Get and Delete return ErrNotFound
// for missing keys.
type Backend interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// FSBackend keeps artifacts below a root directory.
type FSBackend struct {
	root string
}

// NewFSBackend creates a filesystem backend rooted at dir.
func NewFSBackend(dir string) *FSBackend {
	return &FSBackend{root: dir}
}

// Put writes data atomically: readers see either the old or the new
// artifact, never a partial one.
func (b *FSBackend) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := b.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func (b *FSBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (b *FSBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := b.path(key)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	// Drop the per-lecture directory when it is empty.
	_ = os.Remove(filepath.Dir(path))
	return nil
}

func (b *FSBackend) path(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(key))
}
