package cache

import (
	"context"
	"time"
)

// Cache is a short-TTL key-value store used to memoize expensive aggregate
// queries. Entries are immutable once written until TTL expiry; there is no
// write-through invalidation, so readers must tolerate staleness up to the
// TTL window. No atomic compare-and-swap semantics are assumed.
type Cache interface {
	// Get returns the stored bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores the value under key for the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
