// Package blobs stages release file archives for import: uploads land in a
// bucket (S3 or a local directory), imports read them back and delete them
// when done.
package blobs

import "context"

// Store is a flat key/blob store with listing by prefix.
type Store interface {
	// Add uploads data under key.
	Add(ctx context.Context, bucketName, key string, data []byte) error
	// Fetch downloads the blob stored under key.
	Fetch(ctx context.Context, bucketName, key string) ([]byte, error)
	// List returns the keys under prefix, sorted.
	List(ctx context.Context, bucketName, prefix string) ([]string, error)
	// Remove deletes the given keys. Missing keys are not an error.
	Remove(ctx context.Context, bucketName string, keys ...string) error
}
