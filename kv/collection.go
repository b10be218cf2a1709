package kv

import (
	"context"
	"strings"
	"time"
)

// separator joins a collection name to an id.
const separator = ":"

// Collection is a named logical table multiplexed onto a flat Store by
// key prefix. Callers address entries by id and never see the prefix.
type Collection struct {
	store  Store
	prefix string
}

// NewCollection returns the collection name within store.
func NewCollection(store Store, name string) *Collection {
	return &Collection{store: store, prefix: name + separator}
}

// Key returns the flat store key for id.
func (c *Collection) Key(id string) string {
	return c.prefix + id
}

// Get retrieves the value stored for id.
func (c *Collection) Get(ctx context.Context, id string) (string, bool, error) {
	return c.store.Get(ctx, c.Key(id))
}

// Put stores value for id with the given ttl.
func (c *Collection) Put(ctx context.Context, id, value string, ttl time.Duration) error {
	return c.store.Put(ctx, c.Key(id), value, ttl)
}

// Delete removes id.
func (c *Collection) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, c.Key(id))
}

// List returns up to limit ids in key order.
func (c *Collection) List(ctx context.Context, limit int) ([]string, error) {
	keys, err := c.store.List(ctx, c.prefix, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = strings.TrimPrefix(k, c.prefix)
	}
	return ids, nil
}
