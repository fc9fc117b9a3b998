package lifecycle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/solfeed/pkg/feed"
)

type fakeTrigger struct {
	channel feed.Channel
	polls   atomic.Int32
}

func (f *fakeTrigger) Channel() feed.Channel { return f.channel }

func (f *fakeTrigger) PollNow() bool {
	f.polls.Add(1)
	return true
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestHintSourceDispatchesByChannel(t *testing.T) {
	var gotAuth atomic.Value
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"new_post","payload":{"channel":"recent","signature":"s9"}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"new_post"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))

		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	recent := &fakeTrigger{channel: feed.ChannelRecent}
	watch := &fakeTrigger{channel: feed.ChannelWatchlist}

	h := NewHintSource(HintConfig{URL: wsURL(srv), Token: "tok"})
	h.Bind(recent)
	h.Bind(watch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, func() bool { return h.Hints() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), recent.polls.Load(), "channel hint plus broadcast hint")
	assert.Equal(t, int32(1), watch.polls.Load(), "broadcast hint only")
	assert.Equal(t, "Bearer tok", gotAuth.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHintSourceReconnects(t *testing.T) {
	var mu sync.Mutex
	conns := 0
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()

		if n == 1 {
			// drop the first connection straight away
			_ = conn.Close()
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"new_post"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	trigger := &fakeTrigger{channel: feed.ChannelRecent}
	h := NewHintSource(HintConfig{
		URL:           wsURL(srv),
		ReconnectBase: 10 * time.Millisecond,
		ReconnectMax:  20 * time.Millisecond,
	})
	h.Bind(trigger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()

	require.Eventually(t, func() bool { return trigger.polls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, h.Sessions(), int64(2))
}

func TestHintSourceDialFailureRetriesUntilCancel(t *testing.T) {
	h := NewHintSource(HintConfig{
		URL:            "ws://127.0.0.1:1/ws",
		ConnectTimeout: 50 * time.Millisecond,
		ReconnectBase:  5 * time.Millisecond,
		ReconnectMax:   10 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, h.Run(ctx))
	assert.Zero(t, h.Sessions())
}
