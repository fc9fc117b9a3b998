package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/solfeed/pkg/api"
	"github.com/zfogg/solfeed/pkg/feed"
)

// sig builds a signature long enough to pass IsValidSignature
func sig(suffix string) string {
	return strings.Repeat("5", 10) + strings.Repeat("x", 45) + suffix
}

func post(id, wallet string) feed.Post {
	return feed.Post{ID: id, Content: "hello " + id, Author: feed.Author{Wallet: wallet}}
}

func ids(ps []feed.Post) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestAddPostsNewestFirstAndDeduped(t *testing.T) {
	s := New()
	assert.Equal(t, 2, s.AddPosts([]feed.Post{post("b", "W1"), post("a", "W2")}))
	v := s.Version()

	assert.Equal(t, 1, s.AddPosts([]feed.Post{post("c", "W1"), post("b", "W1")}))
	assert.Equal(t, []string{"c", "b", "a"}, ids(s.Posts()))
	assert.Greater(t, s.Version(), v)

	v = s.Version()
	assert.Zero(t, s.AddPosts([]feed.Post{post("a", "W2")}))
	assert.Equal(t, v, s.Version(), "identical posts do not bump the version")

	updated := post("a", "W2")
	updated.Upvotes = 4
	s.AddPosts([]feed.Post{updated})
	p, ok := s.Post("a")
	require.True(t, ok)
	assert.Equal(t, 4, p.Upvotes, "server copy replaces the base")
	assert.Greater(t, s.Version(), v)
}

func TestAddPostsSkipsMissingID(t *testing.T) {
	s := New()
	assert.Zero(t, s.AddPosts([]feed.Post{{Content: "no id"}}))
	assert.Zero(t, s.Len())
}

func TestWalletsDistinct(t *testing.T) {
	s := New()
	s.AddPosts([]feed.Post{post("c", "W1"), post("b", "W2"), post("a", "W1"), post("z", "")})
	assert.Equal(t, []string{"W1", "W2"}, s.Wallets())
}

func TestValidSignatures(t *testing.T) {
	s := New()
	long := sig("1")
	numeric := strings.Repeat("7", 60)
	s.AddPosts([]feed.Post{post(long, "W"), post("short", "W"), post(numeric, "W")})
	assert.Equal(t, []string{long}, s.ValidSignatures())
}

func TestUpdateReputationScoresOnlyChanged(t *testing.T) {
	s := New()
	s.AddPosts([]feed.Post{post("b", "W1"), post("a", "W2"), post("c", "W1")})

	scores := []api.ReputationScore{{Address: "W1", Score: 4.5}, {Address: "W2", Score: 1}}
	assert.Equal(t, 2, s.UpdateReputationScores(scores))

	p, _ := s.Post("c")
	assert.Equal(t, 4.5, p.Reputation)

	v := s.Version()
	assert.Equal(t, 1, s.UpdateReputationScores([]api.ReputationScore{{Address: "W1", Score: 4.5}, {Address: "W2", Score: 2}}))
	assert.Greater(t, s.Version(), v)

	// posts added later pick up known scores
	s.AddPosts([]feed.Post{post("d", "W2")})
	p, _ = s.Post("d")
	assert.Equal(t, 2.0, p.Reputation)
}

func TestUpdateReputationScoresComparesHeldPosts(t *testing.T) {
	s := New()
	w := post("a", "W1")
	w.Reputation = 5
	s.AddPosts([]feed.Post{w})
	v := s.Version()

	assert.Zero(t, s.UpdateReputationScores([]api.ReputationScore{{Address: "W1", Score: 5}}))
	assert.Equal(t, v, s.Version())

	assert.Zero(t, s.UpdateReputationScores([]api.ReputationScore{{Address: "W9", Score: 2}}), "wallet with no posts")
	assert.Equal(t, v, s.Version())
	s.AddPosts([]feed.Post{post("b", "W9")})
	p, _ := s.Post("b")
	assert.Equal(t, 2.0, p.Reputation)
}

func TestMergeIdempotence(t *testing.T) {
	s := New()
	a, b := sig("a"), sig("b")
	s.AddPosts([]feed.Post{post(a, "W1"), post(b, "W2")})

	scores := []api.ReputationScore{{Address: "W1", Score: 3}, {Address: "W2", Score: 9}}
	s.UpdateReputationScores(scores)
	once := s.Posts()
	v := s.Version()

	assert.Zero(t, s.UpdateReputationScores(scores))
	assert.Equal(t, once, s.Posts())
	assert.Equal(t, v, s.Version(), "no-op merge does not bump the version")

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	statuses := []api.ReceiptStatus{{Signature: a, IsReceipted: true, ReceiptedAt: &at}, {Signature: b}}
	assert.Equal(t, 1, s.UpdateReceiptStatuses(statuses))
	once = s.Posts()
	v = s.Version()

	assert.Zero(t, s.UpdateReceiptStatuses(statuses))
	assert.Equal(t, once, s.Posts())
	assert.Equal(t, v, s.Version())
}

func TestUpdateReceiptStatusesIgnoresUnknown(t *testing.T) {
	s := New()
	assert.Zero(t, s.UpdateReceiptStatuses([]api.ReceiptStatus{{Signature: "nope", IsReceipted: true}}))
}

func TestServerWinsOverPendingReceipt(t *testing.T) {
	s := New()
	id := sig("a")
	s.AddPosts([]feed.Post{post(id, "W1")})

	on := true
	_, ok := s.apply(id, change{receipt: &on})
	require.True(t, ok)
	p, _ := s.Post(id)
	require.True(t, p.Receipted)

	assert.Equal(t, 1, s.UpdateReceiptStatuses([]api.ReceiptStatus{{Signature: id, IsReceipted: false}}))
	p, _ = s.Post(id)
	assert.False(t, p.Receipted, "server value replaces the optimistic one")
}

func TestPendingOverlayAndRollback(t *testing.T) {
	s := New()
	s.AddPosts([]feed.Post{post("a", "W1")})

	c1, _ := s.apply("a", change{upvotes: 1})
	c2, _ := s.apply("a", change{tips: 500})
	p, _ := s.Post("a")
	assert.Equal(t, 1, p.Upvotes)
	assert.Equal(t, int64(500), p.TipsReceived)
	assert.Equal(t, 2, s.Pending("a"))

	s.rollback("a", c1)
	p, _ = s.Post("a")
	assert.Zero(t, p.Upvotes)
	assert.Equal(t, int64(500), p.TipsReceived)

	s.confirm("a", c2, func(base *feed.Post) { base.TipsReceived = 1500 })
	p, _ = s.Post("a")
	assert.Equal(t, int64(1500), p.TipsReceived)
	assert.Zero(t, s.Pending("a"))

	_, ok := s.apply("missing", change{})
	assert.False(t, ok)
}
