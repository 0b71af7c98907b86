package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStore is a BlobStore backed by a directory tree: one directory
// per bucket, one file per object key.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore constructs a filesystem-backed blob store rooted at the
// supplied directory.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("storage: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &FilesystemStore{root: root}, nil
}

// Put writes body to <root>/<bucket>/<key>, creating directories as needed.
func (s *FilesystemStore) Put(_ context.Context, bucket, key string, body []byte) error {
	path, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: create object directory: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("storage: write object: %w", err)
	}
	return nil
}

// Get reads the object stored at <root>/<bucket>/<key>.
func (s *FilesystemStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	path, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	body, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read object: %w", err)
	}
	return body, nil
}

func (s *FilesystemStore) objectPath(bucket, key string) (string, error) {
	if strings.TrimSpace(bucket) == "" || strings.TrimSpace(key) == "" {
		return "", errors.New("storage: bucket and key are required")
	}
	path := filepath.Join(s.root, bucket, filepath.FromSlash(key))
	if !strings.HasPrefix(path, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: object path escapes root: %s/%s", bucket, key)
	}
	return path, nil
}
