package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Version int64            `json:"version"`
	Rates   map[string]int64 `json:"rates"`
}

func TestJSONRoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	found, err := GetJSON(ctx, rdb, "economy:snapshot", &snapshot{})
	require.NoError(t, err)
	assert.False(t, found)

	in := snapshot{Version: 3, Rates: map[string]int64{"ad_watch": 10}}
	require.NoError(t, SetJSON(ctx, rdb, "economy:snapshot", in, time.Minute))

	var out snapshot
	found, err = GetJSON(ctx, rdb, "economy:snapshot", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)

	mr.FastForward(2 * time.Minute)
	found, err = GetJSON(ctx, rdb, "economy:snapshot", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, rdb, "k", in, 0))
	require.NoError(t, Delete(ctx, rdb, "k"))
	assert.False(t, mr.Exists("k"))
}
