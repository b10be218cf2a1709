// Package kv defines the TTL key-value namespace every other component
// persists through, and the named collections multiplexed onto it.
package kv

import (
	"context"
	"time"
)

// Store defines the operations of a flat key-value namespace with
// per-key expiration. There are no transactions and no compare-and-swap:
// read-modify-write sequences built on top of it are best-effort.
type Store interface {
	// Get retrieves the value stored under key.
	// Returns found == false if the key is absent or expired (not an error).
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Put stores value under key. The key expires ttl after this write;
	// a ttl <= 0 stores the key without expiry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// List returns up to limit unexpired keys starting with prefix, in
	// lexicographic order. A limit <= 0 returns every matching key.
	List(ctx context.Context, prefix string, limit int) ([]string, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close closes the store and releases any resources.
	Close() error
}

// Sweeper is implemented by stores that do not expire keys natively.
// Sweep purges expired keys and reports how many were removed.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}
