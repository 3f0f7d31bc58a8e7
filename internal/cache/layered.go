package cache

import (
	"context"
	"errors"
	"time"

	"github.com/ppiankov/geoinfer/internal/logging"
	"github.com/ppiankov/geoinfer/internal/model"
)

// LayeredCache reads through its layers in order and writes to all of them
type LayeredCache struct {
	layers []Cache
}

// NewLayeredCache creates a cache over the given layers, fastest first
func NewLayeredCache(layers ...Cache) *LayeredCache {
	return &LayeredCache{layers: layers}
}

// New builds the configured stack: memory, then disk, then Redis when an
// address is set. An unreachable Redis is logged and skipped.
func New(cfg model.CacheConfig, log logging.Logger) *LayeredCache {
	log = logging.OrNop(log)

	layers := []Cache{NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)}
	if cfg.Dir != "" {
		layers = append(layers, NewDiskCache(cfg.Dir, cfg.DiskTTL))
	}
	if cfg.RedisAddr != "" {
		rc, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.DiskTTL)
		if err != nil {
			log.Warn("redis cache unavailable, continuing without it",
				logging.String("addr", cfg.RedisAddr), logging.Error(err))
		} else {
			layers = append(layers, rc)
		}
	}
	return NewLayeredCache(layers...)
}

// Get returns the first hit and promotes it into the faster layers
func (c *LayeredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	for i, layer := range c.layers {
		val, found := layer.Get(ctx, key)
		if !found {
			continue
		}
		for _, faster := range c.layers[:i] {
			_ = faster.Set(ctx, key, val, 0)
		}
		return val, true
	}
	return nil, false
}

// Set stores a value in every layer
func (c *LayeredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Set(ctx, key, value, ttl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Delete removes a value from every layer
func (c *LayeredCache) Delete(ctx context.Context, key string) error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear empties every layer
func (c *LayeredCache) Clear(ctx context.Context) error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes layers that hold connections
func (c *LayeredCache) Close() error {
	var errs []error
	for _, layer := range c.layers {
		if closer, ok := layer.(interface{ Close() error }); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}
