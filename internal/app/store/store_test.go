package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsync/internal/configs"
)

// exerciseKV runs the contract every backend must satisfy.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "token", []byte("abc")))
	value, ok, err := kv.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("abc"), value)

	require.NoError(t, kv.Set(ctx, "token", []byte("def")))
	value, _, err = kv.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, []byte("def"), value)

	require.NoError(t, kv.Remove(ctx, "token"))
	_, ok, err = kv.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Remove(ctx, "token"), "removing an absent key")
}

func TestMemory(t *testing.T) {
	exerciseKV(t, NewMemory())
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	in := []byte("value")
	require.NoError(t, m.Set(ctx, "k", in))
	in[0] = 'X'

	out, _, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "value", string(out))
}

func TestSQLite(t *testing.T) {
	kv, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer kv.Close()

	exerciseKV(t, kv)
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	ctx := context.Background()

	kv, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "channels", []byte(`[{"id":1}]`)))
	require.NoError(t, kv.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, ok, err := reopened.Get(ctx, "channels")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[{"id":1}]`, string(value))
}

func TestRedis(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	kv := NewRedis(redis.NewClient(opts), "chatsync-test:")
	defer kv.Close()

	exerciseKV(t, kv)
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	kv, err := NewPostgres(context.Background(), dsn, "chatsync-test:")
	require.NoError(t, err)
	defer kv.Close()

	exerciseKV(t, kv)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	kv, err := Open(ctx, configs.CacheConfig{Driver: configs.CacheDriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, kv)

	kv, err = Open(ctx, configs.CacheConfig{
		Driver: configs.CacheDriverSQLite,
		Path:   filepath.Join(t.TempDir(), "cache.db"),
	})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, kv)
	require.NoError(t, kv.Close())

	_, err = Open(ctx, configs.CacheConfig{Driver: "etcd"})
	assert.Error(t, err)
}
