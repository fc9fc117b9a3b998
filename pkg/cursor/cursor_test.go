package cursor

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/solfeed/pkg/feed"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Get(ctx, feed.ChannelRecent)
	require.NoError(t, err)
	assert.Empty(t, got, "unset cursor reads as empty")

	require.NoError(t, s.Set(ctx, feed.ChannelRecent, "s5"))
	require.NoError(t, s.Set(ctx, feed.ChannelWatchlist, "w1"))

	got, err = s.Get(ctx, feed.ChannelRecent)
	require.NoError(t, err)
	assert.Equal(t, "s5", got)

	got, err = s.Get(ctx, feed.ChannelWatchlist)
	require.NoError(t, err)
	assert.Equal(t, "w1", got, "channels are independent")

	require.NoError(t, s.Set(ctx, feed.ChannelRecent, "s7"))
	got, _ = s.Get(ctx, feed.ChannelRecent)
	assert.Equal(t, "s7", got)

	require.NoError(t, s.Clear(ctx, feed.ChannelRecent))
	got, _ = s.Get(ctx, feed.ChannelRecent)
	assert.Empty(t, got)

	require.NoError(t, s.Set(ctx, feed.ChannelWatchlist, ""))
	got, _ = s.Get(ctx, feed.ChannelWatchlist)
	assert.Empty(t, got, "setting empty clears")
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	s, err := NewRedisStore(context.Background(), RedisOptions{
		Addr:   addr,
		Prefix: "solfeed-test-" + uuid.NewString(),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Clear(context.Background(), feed.ChannelRecent)
		_ = s.Clear(context.Background(), feed.ChannelWatchlist)
		_ = s.Close()
	})

	exerciseStore(t, s)
}

func TestRedisStoreKey(t *testing.T) {
	s := NewRedisStoreFromClient(nil, "app")
	assert.Equal(t, "app:cursor:watchlist", s.key(feed.ChannelWatchlist))
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisOptions{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
