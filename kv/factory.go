package kv

import (
	"fmt"

	"github.com/creastat/chatcore"
	"github.com/creastat/chatcore/kv/drivers"
)

// StoreType represents the type of key-value store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeBolt   StoreType = "bolt"
)

// NewStore creates a new Store based on the given type.
// For Redis, requires WithRedisClient; for bolt, requires WithBoltPath.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{}
	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeMemory:
		return drivers.NewMemory(config.now), nil

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, fmt.Errorf("redis client is required: %w", chatcore.ErrInvalidConfig)
		}
		return drivers.NewRedis(config.redisClient), nil

	case StoreTypeBolt:
		if config.boltPath == "" {
			return nil, fmt.Errorf("bolt path is required: %w", chatcore.ErrInvalidConfig)
		}
		store, err := drivers.OpenBolt(config.boltPath, config.now)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("%w: %q", chatcore.ErrInvalidStoreType, storeType)
	}
}

// Compile-time checks that the drivers implement Store.
var (
	_ Store   = (*drivers.Memory)(nil)
	_ Store   = (*drivers.Redis)(nil)
	_ Store   = (*drivers.Bolt)(nil)
	_ Sweeper = (*drivers.Memory)(nil)
	_ Sweeper = (*drivers.Bolt)(nil)
)
