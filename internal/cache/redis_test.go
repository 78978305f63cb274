package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisCache_RequiresAddress(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisConfig{})
	assert.Error(t, err)
}

func TestNewRedisCache_UnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func TestRedisCache_ErrorsAreReported(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedisCacheFromClient(client, "convocoach:")
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	_, found, err := c.Get(ctx, "dashboard:overview:u1")
	assert.Error(t, err)
	assert.False(t, found)
	assert.Error(t, c.SetEX(ctx, "dashboard:overview:u1", time.Minute, "{}"))
	assert.Equal(t, "convocoach:dashboard:overview:u1", c.key("dashboard:overview:u1"))
}
