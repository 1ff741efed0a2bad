package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestGetMiss(t *testing.T) {
	c, _ := newTestCache(t)
	_, err := c.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestJSONRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	type summary struct {
		Updated int `json:"updated"`
	}
	require.NoError(t, c.SetJSON(ctx, "k", summary{Updated: 3}, time.Minute))

	var got summary
	require.NoError(t, c.GetJSON(ctx, "k", &got))
	assert.Equal(t, 3, got.Updated)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, c.GetJSON(ctx, "k", &got), ErrMiss)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)
	require.NoError(t, c.Set(ctx, "k", "v", 0))
	require.NoError(t, c.Delete(ctx, "k"))
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}
