// Package contextcache keeps the most recent context digest in the
// key-value store so it is rebuilt at most once per TTL.
//
// A single entry serves every query. A miss always rebuilds; an entry is
// never served past its TTL. Build and store are not atomic, so
// concurrent misses may each rebuild; the last write wins.
package contextcache

import (
	"context"
	"fmt"
	"time"

	"github.com/creastat/chatcore/kv"
)

const (
	collectionName = "cache"
	entryID        = "website_context"

	// DefaultTTL is how long a digest is served before it is rebuilt.
	DefaultTTL = time.Hour
)

// Provider builds a fresh digest.
type Provider interface {
	Build(ctx context.Context) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (string, error)

// Build implements Provider.
func (f ProviderFunc) Build(ctx context.Context) (string, error) { return f(ctx) }

// Cache serves the digest from the store, rebuilding it on a miss.
type Cache struct {
	entries  *kv.Collection
	provider Provider
	ttl      time.Duration
}

// New creates a Cache. A ttl <= 0 uses DefaultTTL.
func New(store kv.Store, provider Provider, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries:  kv.NewCollection(store, collectionName),
		provider: provider,
		ttl:      ttl,
	}
}

// Get returns the cached digest, or builds and caches a new one. The
// query is accepted for interface stability but does not affect the key.
func (c *Cache) Get(ctx context.Context, query string) (string, error) {
	cached, found, err := c.entries.Get(ctx, entryID)
	if err != nil {
		return "", fmt.Errorf("failed to read context cache: %w", err)
	}
	if found && cached != "" {
		return cached, nil
	}

	fresh, err := c.provider.Build(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to build context: %w", err)
	}
	if err := c.entries.Put(ctx, entryID, fresh, c.ttl); err != nil {
		return "", fmt.Errorf("failed to write context cache: %w", err)
	}
	return fresh, nil
}
