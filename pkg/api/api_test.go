package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/solfeed/pkg/client"
	"github.com/zfogg/solfeed/pkg/errors"
	"github.com/zfogg/solfeed/pkg/feed"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(client.New(client.Options{BaseURL: server.URL, Timeout: 2 * time.Second}))
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestFetchSinceBaseline(t *testing.T) {
	var gotPath, gotCursor, gotLimit string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCursor = r.URL.Query().Get("cursor")
		gotLimit = r.URL.Query().Get("limit")
		writeJSON(w, http.StatusOK, `{"posts":[
			{"signature":"s2","content":"second","author":{"wallet":"W2"}},
			{"transactionHash":"s1","text":"first","userWallet":"W1"},
			{"content":"no id"}
		]}`)
	})

	res, err := c.FetchSince(context.Background(), feed.ChannelRecent, "", 0)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/feed/recent", gotPath)
	assert.Empty(t, gotCursor, "baseline fetch sends no cursor")
	assert.Equal(t, "20", gotLimit)

	require.Len(t, res.Posts, 2)
	assert.Equal(t, "s2", res.Newest())
	assert.Equal(t, "W2", res.Posts[0].Author.Wallet)
	assert.Equal(t, "s1", res.Posts[1].ID)
	assert.Equal(t, "W1", res.Posts[1].Author.Wallet)
}

func TestFetchSinceSendsCursor(t *testing.T) {
	var gotCursor string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotCursor = r.URL.Query().Get("cursor")
		writeJSON(w, http.StatusOK, `{"posts":[]}`)
	})

	res, err := c.FetchSince(context.Background(), feed.ChannelWatchlist, "s5", 10)
	require.NoError(t, err)
	assert.Equal(t, "s5", gotCursor)
	assert.Empty(t, res.Posts)
	assert.Empty(t, res.Newest())
}

func TestFetchSinceAuthFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"error":"Authentication required"}`)
	})

	_, err := c.FetchSince(context.Background(), feed.ChannelWatchlist, "", 20)
	require.Error(t, err)
	assert.True(t, errors.IsAuth(err))
	assert.False(t, errors.Retryable(err))
}

func TestFetchSinceRateLimitHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "12")
		writeJSON(w, http.StatusTooManyRequests, `{"error":"rate limit exceeded"}`)
	})

	_, err := c.FetchSince(context.Background(), feed.ChannelRecent, "s1", 20)
	require.Error(t, err)
	assert.True(t, errors.IsRateLimit(err))
	assert.Equal(t, 12*time.Second, errors.RetryAfter(err))
}

func TestFetchSinceRateLimitBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, `{"error":"slow down","retry_after":7}`)
	})

	_, err := c.FetchSince(context.Background(), feed.ChannelRecent, "", 20)
	assert.Equal(t, 7*time.Second, errors.RetryAfter(err))
}

func TestFetchSinceServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, `{"message":"upstream unavailable"}`)
	})

	_, err := c.FetchSince(context.Background(), feed.ChannelRecent, "", 20)
	require.Error(t, err)
	assert.True(t, errors.Retryable(err))
	assert.Contains(t, err.Error(), "upstream unavailable")
	assert.Equal(t, errors.ErrorTypeServer, errors.Classify(err).Type)
}

func TestFetchSinceNetworkError(t *testing.T) {
	c := New(client.New(client.Options{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}))

	_, err := c.FetchSince(context.Background(), feed.ChannelRecent, "", 20)
	require.Error(t, err)
	assert.True(t, errors.Retryable(err))
	assert.False(t, errors.IsAuth(err))
}

func TestBatchReputation(t *testing.T) {
	var body map[string][]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/reputation/batch", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, `{"scores":[{"address":"W1","score":4.5},{"address":"W2","score":1}]}`)
	})

	scores, err := c.BatchReputation(context.Background(), []string{"W1", "W2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"W1", "W2"}, body["addresses"])
	assert.Equal(t, []ReputationScore{{Address: "W1", Score: 4.5}, {Address: "W2", Score: 1}}, scores)
}

func TestBatchEmptyInputSkipsNetwork(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	scores, err := c.BatchReputation(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, scores)

	statuses, err := c.BatchReceiptStatus(context.Background(), []string{})
	assert.NoError(t, err)
	assert.Nil(t, statuses)

	assert.Zero(t, calls)
}

func TestBatchReceiptStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/receipts/batch-status", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"statuses":[
			{"signature":"a","isReceipted":true,"receiptedAt":"2024-05-01T10:00:00Z"},
			{"signature":"b","isReceipted":false}
		]}`)
	})

	statuses, err := c.BatchReceiptStatus(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].IsReceipted)
	require.NotNil(t, statuses[0].ReceiptedAt)
	assert.Equal(t, 2024, statuses[0].ReceiptedAt.Year())
	assert.False(t, statuses[1].IsReceipted)
	assert.Nil(t, statuses[1].ReceiptedAt)
}

func TestVote(t *testing.T) {
	var body map[string]int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/posts/sig1/vote", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, `{"upvotes":11,"downvotes":2}`)
	})

	res, err := c.Vote(context.Background(), "sig1", VoteUp)
	require.NoError(t, err)
	assert.Equal(t, 1, body["direction"])
	assert.Equal(t, &VoteResult{Upvotes: 11, Downvotes: 2}, res)
}

func TestSetReceiptMethods(t *testing.T) {
	var methods []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodPost {
			writeJSON(w, http.StatusOK, `{"isReceipted":true,"receiptedAt":"2024-05-01T10:00:00Z"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"isReceipted":false}`)
	})

	on, err := c.SetReceipt(context.Background(), "sig1", true)
	require.NoError(t, err)
	assert.True(t, on.IsReceipted)
	assert.Equal(t, "sig1", on.Signature)

	off, err := c.SetReceipt(context.Background(), "sig1", false)
	require.NoError(t, err)
	assert.False(t, off.IsReceipted)

	assert.Equal(t, []string{http.MethodPost, http.MethodDelete}, methods)
}

func TestRecordTip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/posts/sig1/tips", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"tipsReceived":1500}`)
	})

	res, err := c.RecordTip(context.Background(), "sig1", "txsig", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), res.TipsReceived)
}

func TestGetPost(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/api/v1/posts/sig1":
			writeJSON(w, http.StatusOK, `{"post":{"transactionHash":"sig1","text":"gm","userWallet":"W1","upvotes":3}}`)
		case "/api/v1/posts/blank":
			writeJSON(w, http.StatusOK, `{"post":{"content":"no id"}}`)
		default:
			writeJSON(w, http.StatusNotFound, `{"error":"not found"}`)
		}
	})

	p, err := c.GetPost(context.Background(), "sig1")
	require.NoError(t, err)
	assert.Equal(t, "sig1", p.ID)
	assert.Equal(t, "gm", p.Content)
	assert.Equal(t, "W1", p.Author.Wallet)
	assert.Equal(t, 3, p.Upvotes)

	_, err = c.GetPost(context.Background(), "blank")
	assert.Error(t, err)

	_, err = c.GetPost(context.Background(), "missing")
	assert.Error(t, err)
}
