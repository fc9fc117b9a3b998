// Package feed holds the normalized post model shared by the poll loop, the
// social store and the CLI, plus the identifier and dedup rules every layer
// relies on.
package feed

import (
	"fmt"
	"strings"
	"time"
)

// Channel names a pollable feed
type Channel string

const (
	ChannelRecent    Channel = "recent"
	ChannelWatchlist Channel = "watchlist"
)

// ParseChannel validates a channel name
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelRecent:
		return ChannelRecent, nil
	case ChannelWatchlist:
		return ChannelWatchlist, nil
	}
	return "", fmt.Errorf("unknown feed channel %q (want recent or watchlist)", s)
}

// RequiresAuth reports whether fetching the channel needs a logged-in user
func (c Channel) RequiresAuth() bool {
	return c == ChannelWatchlist
}

func (c Channel) String() string {
	return string(c)
}

// Author is the wallet that signed a post
type Author struct {
	Wallet      string `json:"wallet"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Handle returns the best human-readable name for the author
func (a Author) Handle() string {
	switch {
	case a.Username != "":
		return "@" + a.Username
	case a.DisplayName != "":
		return a.DisplayName
	case len(a.Wallet) > 10:
		return a.Wallet[:4] + "…" + a.Wallet[len(a.Wallet)-4:]
	default:
		return a.Wallet
	}
}

// Post is a normalized post. ID is the canonical identifier: the on-chain
// signature when the source has one.
type Post struct {
	ID           string     `json:"id"`
	Content      string     `json:"content"`
	Author       Author     `json:"author"`
	CreatedAt    time.Time  `json:"createdAt"`
	Upvotes      int        `json:"upvotes"`
	Downvotes    int        `json:"downvotes"`
	TipsReceived int64      `json:"tipsReceived"`
	Reputation   float64    `json:"reputation"`
	Receipted    bool       `json:"receipted"`
	ReceiptedAt  *time.Time `json:"receiptedAt,omitempty"`
	QuotedID     string     `json:"quotedId,omitempty"`
	ThreadID     string     `json:"threadId,omitempty"`
}

// Score returns upvotes minus downvotes
func (p Post) Score() int {
	return p.Upvotes - p.Downvotes
}

// RawAuthor is the author object as the feed API sends it
type RawAuthor struct {
	Wallet        string `json:"wallet"`
	WalletAddress string `json:"walletAddress"`
	Address       string `json:"address"`
	Username      string `json:"username"`
	DisplayName   string `json:"displayName"`
	Avatar        string `json:"avatar"`
	AvatarURL     string `json:"avatarUrl"`
}

// RawPost is a post as the feed API sends it. Different upstream sources
// populate different identifier and author fields.
type RawPost struct {
	Signature       string     `json:"signature"`
	TransactionHash string     `json:"transactionHash"`
	ID              string     `json:"id"`
	Content         string     `json:"content"`
	Text            string     `json:"text"`
	Author          *RawAuthor `json:"author"`
	UserWallet      string     `json:"userWallet"`
	CreatedAt       string     `json:"createdAt"`
	Timestamp       int64      `json:"timestamp"`
	Upvotes         int        `json:"upvotes"`
	Downvotes       int        `json:"downvotes"`
	TipsReceived    int64      `json:"tipsReceived"`
	Reputation      float64    `json:"reputation"`
	IsReceipted     bool       `json:"isReceipted"`
	QuotedSignature string     `json:"quotedSignature"`
	ThreadID        string     `json:"threadId"`
}

// Identifier returns the first non-empty of signature, transaction hash, id
func (r RawPost) Identifier() string {
	for _, v := range []string{r.Signature, r.TransactionHash, r.ID} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Normalize converts a wire post into a Post. ok is false when the record
// carries no identifier at all.
func Normalize(r RawPost) (p Post, ok bool) {
	id := r.Identifier()
	if id == "" {
		return Post{}, false
	}

	p = Post{
		ID:           id,
		Content:      firstNonEmpty(r.Content, r.Text),
		CreatedAt:    parseTime(r.CreatedAt, r.Timestamp),
		Upvotes:      r.Upvotes,
		Downvotes:    r.Downvotes,
		TipsReceived: r.TipsReceived,
		Reputation:   r.Reputation,
		Receipted:    r.IsReceipted,
		QuotedID:     r.QuotedSignature,
		ThreadID:     r.ThreadID,
	}
	if r.Author != nil {
		p.Author = Author{
			Wallet:      firstNonEmpty(r.Author.Wallet, r.Author.WalletAddress, r.Author.Address),
			Username:    r.Author.Username,
			DisplayName: r.Author.DisplayName,
			AvatarURL:   firstNonEmpty(r.Author.AvatarURL, r.Author.Avatar),
		}
	}
	if p.Author.Wallet == "" {
		p.Author.Wallet = r.UserWallet
	}
	return p, true
}

// NormalizeAll normalizes a page, dropping records without an identifier
func NormalizeAll(raw []RawPost) []Post {
	posts := make([]Post, 0, len(raw))
	for _, r := range raw {
		if p, ok := Normalize(r); ok {
			posts = append(posts, p)
		}
	}
	return posts
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseTime accepts RFC 3339 strings or unix timestamps in seconds or millis
func parseTime(s string, ts int64) time.Time {
	if s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
	}
	switch {
	case ts > 1e12:
		return time.UnixMilli(ts).UTC()
	case ts > 0:
		return time.Unix(ts, 0).UTC()
	}
	return time.Time{}
}
