package blobs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	termcore "github.com/clinterm/termcore"
)

type fileStore struct {
	root string
}

// NewFileStore returns a Store on the local filesystem, rooted at root.
// Buckets map to directories and keys to files below them. Used by local
// file imports and in standalone deployments without S3.
func NewFileStore(root string) Store {
	return &fileStore{root: root}
}

func (f *fileStore) path(bucketName, key string) string {
	return filepath.Join(f.root, bucketName, filepath.FromSlash(key))
}

func (f *fileStore) Add(ctx context.Context, bucketName, key string, data []byte) error {
	p := f.path(bucketName, key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("couldn't create directory for %s, details: %v", p, err)
	}
	return os.WriteFile(p, data, 0o644)
}

func (f *fileStore) Fetch(ctx context.Context, bucketName, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(bucketName, key))
	if os.IsNotExist(err) {
		return nil, termcore.Errorf(termcore.Validation, "blob %s not found in bucket %s", key, bucketName)
	}
	return data, err
}

func (f *fileStore) List(ctx context.Context, bucketName, prefix string) ([]string, error) {
	base := filepath.Join(f.root, bucketName)
	var keys []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fileStore) Remove(ctx context.Context, bucketName string, keys ...string) error {
	for _, key := range keys {
		if err := os.Remove(f.path(bucketName, key)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
