/*
Package store implements the persistent cache adapter.

A KV backend stores opaque byte values under string keys and survives process
restarts. Cache layers typed, fail-open JSON records on top of any backend.
*/
package store

import (
	"context"
	"fmt"

	"chatsync/internal/configs"
)

// KV is the key-value persistence contract every backend implements.
type KV interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases the backend's resources.
	Close() error
}

// Open builds the KV backend selected by cfg.Driver.
func Open(ctx context.Context, cfg configs.CacheConfig) (KV, error) {
	switch cfg.Driver {
	case configs.CacheDriverMemory:
		return NewMemory(), nil
	case configs.CacheDriverSQLite:
		return NewSQLite(cfg.Path)
	case configs.CacheDriverRedis:
		return NewRedisFromURL(ctx, cfg.RedisURL, cfg.KeyPrefix)
	case configs.CacheDriverPostgres:
		return NewPostgres(ctx, cfg.DatabaseURL, cfg.KeyPrefix)
	case configs.CacheDriverS3:
		return NewS3(ctx, S3Config{
			BucketName:      cfg.S3BucketName,
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Prefix:          cfg.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", cfg.Driver)
	}
}
