package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/zfogg/solfeed/pkg/client"
	"github.com/zfogg/solfeed/pkg/feed"
	"github.com/zfogg/solfeed/pkg/logger"
)

// Client talks to the social API over a resty client
type Client struct {
	http *resty.Client
}

// New wraps an existing resty client
func New(http *resty.Client) *Client {
	return &Client{http: http}
}

// Default returns a Client over the shared HTTP client from pkg/client
func Default() *Client {
	return New(client.GetClient())
}

// FetchSince retrieves posts newer than cursor for a channel. An empty cursor
// fetches the most recent page, which callers use as a baseline.
func (c *Client) FetchSince(ctx context.Context, channel feed.Channel, cursor string, limit int) (*FetchResult, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	logger.Debug("Fetching feed", "channel", channel, "cursor", cursor, "limit", limit)

	params := map[string]string{
		"limit": strconv.Itoa(limit),
	}
	if cursor != "" {
		params["cursor"] = cursor
	}

	var response FeedResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&response).
		Get(fmt.Sprintf("/api/v1/feed/%s", url.PathEscape(channel.String())))

	if err := CheckResponse(resp, err); err != nil {
		return nil, fmt.Errorf("fetch %s feed: %w", channel, err)
	}

	return &FetchResult{
		Channel: channel,
		Cursor:  cursor,
		Posts:   feed.NormalizeAll(response.Posts),
	}, nil
}
