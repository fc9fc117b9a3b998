package service

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/solfeed/pkg/api"
	"github.com/zfogg/solfeed/pkg/client"
	"github.com/zfogg/solfeed/pkg/config"
	"github.com/zfogg/solfeed/pkg/cursor"
	"github.com/zfogg/solfeed/pkg/errors"
	"github.com/zfogg/solfeed/pkg/feed"
	"github.com/zfogg/solfeed/pkg/poller"
)

func init() {
	color.NoColor = true
}

func TestSchedulerFromSettings(t *testing.T) {
	ws := NewWatchService(config.Settings{
		PollInterval:      20 * time.Second,
		WatchlistInterval: time.Minute,
		MaxRetries:        5,
		BackoffCap:        2 * time.Minute,
		RateLimitFallback: 90 * time.Second,
	})

	s := ws.Scheduler(feed.ChannelRecent, 0)
	assert.Equal(t, 20*time.Second, s.Interval)
	assert.Equal(t, 5, s.MaxRetries)
	assert.Equal(t, 2*time.Minute, s.Cap)
	assert.Equal(t, 90*time.Second, s.RateLimitFallback)

	assert.Equal(t, time.Minute, ws.Scheduler(feed.ChannelWatchlist, 0).Interval)
	assert.Equal(t, 5*time.Second, ws.Scheduler(feed.ChannelWatchlist, 5*time.Second).Interval)
}

func TestSchedulerDefaults(t *testing.T) {
	ws := NewWatchService(config.Settings{})
	assert.Equal(t, poller.DefaultScheduler(feed.ChannelRecent), ws.Scheduler(feed.ChannelRecent, 0))
	assert.Equal(t, poller.DefaultScheduler(feed.ChannelWatchlist), ws.Scheduler(feed.ChannelWatchlist, 0))
}

func TestDistinctChannels(t *testing.T) {
	got := distinct([]feed.Channel{feed.ChannelRecent, feed.ChannelWatchlist, feed.ChannelRecent})
	assert.Equal(t, []feed.Channel{feed.ChannelRecent, feed.ChannelWatchlist}, got)
	assert.Equal(t, "recent, watchlist", channelList(got))
}

func TestStopTracker(t *testing.T) {
	st := newStopTracker(2)
	st.stopped(feed.ChannelWatchlist, errors.AuthRequired(poller.WatchlistAuthMessage))
	st.stopped(feed.ChannelWatchlist, errors.AuthRequired("again"))

	select {
	case <-st.done:
		t.Fatal("done before every channel stopped")
	default:
	}

	last := errors.Exhausted(errors.ServerError(500, "boom"))
	st.stopped(feed.ChannelRecent, last)
	<-st.done
	assert.Equal(t, last, st.last())
}

func TestOpenCursorStore(t *testing.T) {
	s, closeFn, err := OpenCursorStore(context.Background(), config.Settings{CursorBackend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &cursor.MemoryStore{}, s)
	closeFn()

	_, _, err = OpenCursorStore(context.Background(), config.Settings{CursorBackend: "etcd"})
	assert.Error(t, err)

	_, _, err = OpenCursorStore(context.Background(), config.Settings{CursorBackend: "redis", RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestCursorService(t *testing.T) {
	ctx := context.Background()
	store := cursor.NewMemoryStore()
	require.NoError(t, store.Set(ctx, feed.ChannelRecent, "sig-1"))
	require.NoError(t, store.Set(ctx, feed.ChannelWatchlist, "sig-2"))

	var buf bytes.Buffer
	cs := NewCursorService(store)
	cs.out = &buf

	require.NoError(t, cs.Show(ctx, ""))
	assert.Contains(t, buf.String(), "sig-1")
	assert.Contains(t, buf.String(), "sig-2")

	require.NoError(t, cs.Clear(ctx, "watchlist"))
	cur, _ := store.Get(ctx, feed.ChannelWatchlist)
	assert.Empty(t, cur)

	buf.Reset()
	require.NoError(t, cs.Show(ctx, "watchlist"))
	assert.Contains(t, buf.String(), "-")
	assert.NotContains(t, buf.String(), "recent")

	assert.Error(t, cs.Clear(ctx, "home"))
}

func TestShowFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/feed/recent", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"posts":[
			{"signature":"sig-b","content":"second","author":{"wallet":"W1","username":"bob"}},
			{"id":"sig-a","text":"first","userWallet":"W2"},
			{"content":"no id"}
		]}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	fs := &FeedService{api: api.New(client.New(client.Options{BaseURL: srv.URL})), out: &buf}

	require.NoError(t, fs.ShowFeed(context.Background(), feed.ChannelRecent, 5, false))
	out := buf.String()
	assert.Contains(t, out, "recent (2)")
	assert.Contains(t, out, "@bob")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("second")), bytes.Index(buf.Bytes(), []byte("first")))
}

func TestShowFeedEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"posts":[]}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	fs := &FeedService{api: api.New(client.New(client.Options{BaseURL: srv.URL})), out: &buf}

	require.NoError(t, fs.ShowFeed(context.Background(), feed.ChannelWatchlist, 0, true))
	assert.Equal(t, "No posts in watchlist.\n", buf.String())
}

func TestShowFeedAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	fs := &FeedService{api: api.New(client.New(client.Options{BaseURL: srv.URL})), out: &bytes.Buffer{}}
	err := fs.ShowFeed(context.Background(), feed.ChannelWatchlist, 0, false)
	require.Error(t, err)
	assert.True(t, errors.IsAuth(err))
}

func TestAuthLoginStatusLogout(t *testing.T) {
	var buf bytes.Buffer
	s := &AuthService{path: t.TempDir() + "/credentials", out: &buf}

	require.NoError(t, s.Status())
	assert.Equal(t, "Not logged in.\n", buf.String())

	require.NoError(t, s.Login("opaque-token", "W1", "alice"))
	buf.Reset()
	require.NoError(t, s.Status())
	assert.Equal(t, "Logged in as @alice (expires never).\n", buf.String())

	require.NoError(t, s.Logout())
	require.NoError(t, s.Logout(), "second logout is a warning, not an error")
	buf.Reset()
	require.NoError(t, s.Status())
	assert.Equal(t, "Not logged in.\n", buf.String())
}
