package sfapi_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/blastradius/pkg/sfapi"
	"github.com/platinummonkey/blastradius/pkg/sfapi/sfapitest"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := sfapi.NewRedisClient(sfapi.RedisConfig{URL: "redis://" + mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestNewRedisClient_Errors(t *testing.T) {
	_, err := sfapi.NewRedisClient(sfapi.RedisConfig{URL: "not a url"})
	assert.ErrorContains(t, err, "invalid redis URL")

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = sfapi.NewRedisClient(sfapi.RedisConfig{URL: "redis://" + addr})
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestRedisReadCache_ReadThrough(t *testing.T) {
	mr, client := newRedis(t)
	m := sfapitest.New()
	m.AddBody("Layout", "Account-Account Layout", map[string]any{"layoutSections": []any{}})
	m.DenyRead("Layout", "Secret-Layout")

	cache := sfapi.NewRedisReadCache(m, client, time.Minute, nil)
	ctx := context.Background()
	names := []string{"Account-Account Layout", "Secret-Layout", "Missing"}

	first, err := cache.Read(ctx, "Layout", names)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "Account-Account Layout", first[0].FullName)
	assert.True(t, first[1].AccessDenied)

	assert.True(t, mr.Exists("metadata:Layout:Account-Account Layout"))
	assert.False(t, mr.Exists("metadata:Layout:Secret-Layout"))
	assert.Equal(t, time.Minute, mr.TTL("metadata:Layout:Account-Account Layout"))

	second, err := cache.Read(ctx, "Layout", names[:1])
	require.NoError(t, err)
	assert.Equal(t, first[:1], second)
	assert.Len(t, m.Reads(), 3)
}

func TestRedisReadCache_CorruptEntryIsRefetched(t *testing.T) {
	mr, client := newRedis(t)
	m := sfapitest.New()
	m.AddBody("Flow", "Onboard", map[string]any{"label": "Onboard"})
	require.NoError(t, mr.Set("metadata:Flow:Onboard", "{"))

	cache := sfapi.NewRedisReadCache(m, client, 0, nil)
	bodies, err := cache.Read(context.Background(), "Flow", []string{"Onboard"})
	require.NoError(t, err)
	require.Len(t, bodies, 1)
	assert.Equal(t, "Onboard", bodies[0].Body["label"])
	assert.Equal(t, []string{"Flow:Onboard"}, m.Reads())
}

func TestRedisReadCache_RedisDownFallsThrough(t *testing.T) {
	mr, client := newRedis(t)
	m := sfapitest.New()
	m.AddBody("Flow", "Onboard", map[string]any{"label": "Onboard"})
	mr.Close()

	cache := sfapi.NewRedisReadCache(m, client, time.Minute, nil)
	bodies, err := cache.Read(context.Background(), "Flow", []string{"Onboard"})
	require.NoError(t, err)
	assert.Len(t, bodies, 1)
}

func TestRedisReadCache_ReadError(t *testing.T) {
	_, client := newRedis(t)
	m := sfapitest.New()
	boom := errors.New("read failed")
	m.FailRead("Flow", boom)

	cache := sfapi.NewRedisReadCache(m, client, time.Minute, nil)
	_, err := cache.Read(context.Background(), "Flow", []string{"Onboard"})
	assert.ErrorIs(t, err, boom)
}

func TestRedisReadCache_Invalidate(t *testing.T) {
	mr, client := newRedis(t)
	m := sfapitest.New()
	m.AddBody("Flow", "Onboard", map[string]any{"label": "Onboard"})

	cache := sfapi.NewRedisReadCache(m, client, time.Minute, nil)
	ctx := context.Background()
	_, err := cache.Read(ctx, "Flow", []string{"Onboard"})
	require.NoError(t, err)
	require.True(t, mr.Exists("metadata:Flow:Onboard"))

	require.NoError(t, cache.Invalidate(ctx, "Flow", "Onboard"))
	assert.False(t, mr.Exists("metadata:Flow:Onboard"))
	assert.NoError(t, cache.Invalidate(ctx, "Flow"))
}
