package termcore

import (
	"context"
	"time"
)

// Cache is a struct cache with expiry, used for display-term lookups keyed by
// branch head so entries can never go stale. Implemented by the redis package
// and its in-process mock.
type Cache interface {
	// SetStruct caches value under key. A negative expiration disables
	// caching for the call.
	SetStruct(ctx context.Context, key string, value any, expiration time.Duration) error
	// GetStruct fetches the value cached under key into target. Returns
	// false with a nil error when the key is not found.
	GetStruct(ctx context.Context, key string, target any) (bool, error)
	// Delete removes keys. Missing keys are not an error; the first return
	// is false when any key was not found.
	Delete(ctx context.Context, keys ...string) (bool, error)
	// Ping tests connectivity.
	Ping(ctx context.Context) error
	// Clear empties the cache. Be cautious calling this, it flushes the
	// whole DB.
	Clear(ctx context.Context) error
}
