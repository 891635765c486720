package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"chatsync/internal/pkg/logx"
)

// Key names a cached record.
type Key string

const (
	KeyUser            Key = "user"
	KeyToken           Key = "token"
	KeyWorkspace       Key = "workspace"
	KeyChannels        Key = "channels"
	KeyMessages        Key = "messages"
	KeyUsers           Key = "users"
	KeyActiveChannelID Key = "activeChannelId"
	KeyClientID        Key = "clientId"
	KeyOS              Key = "os"
	KeyArch            Key = "arch"
)

// SessionKeys are the records removed on logout.
var SessionKeys = []Key{KeyUser, KeyToken, KeyWorkspace, KeyChannels, KeyMessages}

// opTimeout bounds a single backend call so a slow remote backend cannot stall
// the synchronous session mutators.
const opTimeout = 5 * time.Second

// Cache is the typed adapter over a KV backend. Reads fail open: a missing,
// unreadable or undecodable entry is reported as absent and logged.
type Cache struct {
	kv     KV
	logger zerolog.Logger
}

// NewCache wraps kv.
func NewCache(kv KV) *Cache {
	return &Cache{
		kv:     kv,
		logger: logx.Component("cache"),
	}
}

func (c *Cache) getRaw(key Key) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, ok, err := c.kv.Get(ctx, string(key))
	if err != nil {
		c.logger.Warn().Err(err).Str("key", string(key)).Msg("Cache read failed, treating as absent")
		return nil, false
	}
	return data, ok
}

// Get decodes the JSON record stored under key into a T.
func Get[T any](c *Cache, key Key) (T, bool) {
	var value T

	data, ok := c.getRaw(key)
	if !ok {
		return value, false
	}

	if err := json.Unmarshal(data, &value); err != nil {
		c.logger.Warn().Err(err).Str("key", string(key)).Msg("Corrupt cache entry, treating as absent")
		var zero T
		return zero, false
	}
	return value, true
}

// GetString returns the raw text stored under key.
func (c *Cache) GetString(key Key) (string, bool) {
	data, ok := c.getRaw(key)
	if !ok || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

// Set stores value under key as JSON.
func (c *Cache) Set(key Key, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.SetString(key, string(data))
}

// SetString stores raw text under key.
func (c *Cache) SetString(key Key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := c.kv.Set(ctx, string(key), []byte(value)); err != nil {
		c.logger.Error().Err(err).Str("key", string(key)).Msg("Cache write failed")
		return err
	}
	return nil
}

// Remove deletes every key, continuing past failures. It returns the first error seen.
func (c *Cache) Remove(keys ...Key) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var firstErr error
	for _, key := range keys {
		if err := c.kv.Remove(ctx, string(key)); err != nil {
			c.logger.Error().Err(err).Str("key", string(key)).Msg("Cache remove failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
