package embedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingEmbedder struct {
	calls  int
	values []float32
	err    error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.values, c.err
}

func (c *countingEmbedder) Model() string {
	return "test-model"
}

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestEmbedderCachesVectors(t *testing.T) {
	mr, client := setup(t)
	next := &countingEmbedder{values: []float32{0.25, -0.5}}
	cache := New(next, client, time.Hour, zap.NewNop())

	first, err := cache.Embed(context.Background(), "pension for seniors")
	require.NoError(t, err)
	second, err := cache.Embed(context.Background(), "pension for seniors")
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, "test-model", cache.Model())

	key := Key("test-model", "pension for seniors")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))
}

func TestEmbedderRecomputesUnreadableEntry(t *testing.T) {
	mr, client := setup(t)
	key := Key("test-model", "text")
	require.NoError(t, mr.Set(key, "not json"))

	next := &countingEmbedder{values: []float32{1}}
	cache := New(next, client, 0, zap.NewNop())

	values, err := cache.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, values)
	assert.Equal(t, 1, next.calls)

	stored, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "[1]", stored)
}

func TestEmbedderFallsThroughWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	next := &countingEmbedder{values: []float32{0.5}}
	cache := New(next, client, time.Minute, zap.NewNop())

	values, err := cache.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, values)
}

func TestEmbedderDoesNotCacheErrors(t *testing.T) {
	mr, client := setup(t)
	next := &countingEmbedder{err: errors.New("boom")}
	cache := New(next, client, time.Minute, zap.NewNop())

	_, err := cache.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.False(t, mr.Exists(Key("test-model", "text")))
}

func TestKeyDependsOnModel(t *testing.T) {
	assert.NotEqual(t, Key("a", "text"), Key("b", "text"))
	assert.Regexp(t, `^embedding:a:[0-9a-f]{64}$`, Key("a", "text"))
}
