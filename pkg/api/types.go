package api

import (
	"time"

	"github.com/zfogg/solfeed/pkg/feed"
)

// DefaultPageSize is the feed page size when the caller passes zero
const DefaultPageSize = 20

// FeedResponse is the body of GET /api/v1/feed/{channel}
type FeedResponse struct {
	Posts      []feed.RawPost `json:"posts"`
	NextCursor string         `json:"nextCursor,omitempty"`
	HasMore    bool           `json:"hasMore,omitempty"`
}

// postResponse is the body of GET /api/v1/posts/{signature}
type postResponse struct {
	Post feed.RawPost `json:"post"`
}

// FetchResult is one normalized feed page, newest first
type FetchResult struct {
	Channel feed.Channel
	Cursor  string
	Posts   []feed.Post
}

// Newest returns the identifier of the first post, or "" for an empty page
func (r *FetchResult) Newest() string {
	if r == nil || len(r.Posts) == 0 {
		return ""
	}
	return r.Posts[0].ID
}

type reputationRequest struct {
	Addresses []string `json:"addresses"`
}

// ReputationScore is one wallet's current score
type ReputationScore struct {
	Address string  `json:"address"`
	Score   float64 `json:"score"`
}

type reputationResponse struct {
	Scores []ReputationScore `json:"scores"`
}

type receiptStatusRequest struct {
	Signatures []string `json:"signatures"`
}

// ReceiptStatus is whether the current user receipted (bookmarked) a post
type ReceiptStatus struct {
	Signature   string     `json:"signature"`
	IsReceipted bool       `json:"isReceipted"`
	ReceiptedAt *time.Time `json:"receiptedAt,omitempty"`
}

type receiptStatusResponse struct {
	Statuses []ReceiptStatus `json:"statuses"`
}

// VoteDirection is +1 for an upvote, -1 for a downvote, 0 to retract
type VoteDirection int

const (
	VoteDown VoteDirection = -1
	VoteNone VoteDirection = 0
	VoteUp   VoteDirection = 1
)

type voteRequest struct {
	Direction VoteDirection `json:"direction"`
}

// VoteResult is the server-confirmed vote tally for a post
type VoteResult struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

type tipRequest struct {
	TransactionSignature string `json:"transactionSignature"`
	Lamports             int64  `json:"lamports"`
}

// TipResult is the server-confirmed tip total for a post
type TipResult struct {
	TipsReceived int64 `json:"tipsReceived"`
}
