package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/zfogg/solfeed/pkg/feed"
	"github.com/zfogg/solfeed/pkg/logger"
)

// Vote casts, changes or retracts the current user's vote on a post
func (c *Client) Vote(ctx context.Context, signature string, dir VoteDirection) (*VoteResult, error) {
	logger.Debug("Voting on post", "signature", signature, "direction", dir)

	var result VoteResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(voteRequest{Direction: dir}).
		SetResult(&result).
		Post(fmt.Sprintf("/api/v1/posts/%s/vote", url.PathEscape(signature)))

	if err := CheckResponse(resp, err); err != nil {
		return nil, fmt.Errorf("vote: %w", err)
	}
	return &result, nil
}

// SetReceipt adds or removes a receipt (bookmark) for the current user
func (c *Client) SetReceipt(ctx context.Context, signature string, on bool) (*ReceiptStatus, error) {
	logger.Debug("Updating receipt", "signature", signature, "on", on)

	var result ReceiptStatus
	req := c.http.R().SetContext(ctx).SetResult(&result)
	path := fmt.Sprintf("/api/v1/receipts/%s", url.PathEscape(signature))

	var err error
	if on {
		resp, e := req.Post(path)
		err = CheckResponse(resp, e)
	} else {
		resp, e := req.Delete(path)
		err = CheckResponse(resp, e)
	}
	if err != nil {
		return nil, fmt.Errorf("receipt: %w", err)
	}

	if result.Signature == "" {
		result.Signature = signature
	}
	return &result, nil
}

// RecordTip reports a tip transfer signed by the wallet so the server can
// verify it and update the post's total
func (c *Client) RecordTip(ctx context.Context, signature, txSignature string, lamports int64) (*TipResult, error) {
	logger.Debug("Recording tip", "signature", signature, "tx", txSignature, "lamports", lamports)

	var result TipResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(tipRequest{TransactionSignature: txSignature, Lamports: lamports}).
		SetResult(&result).
		Post(fmt.Sprintf("/api/v1/posts/%s/tips", url.PathEscape(signature)))

	if err := CheckResponse(resp, err); err != nil {
		return nil, fmt.Errorf("record tip: %w", err)
	}
	return &result, nil
}

// GetPost fetches a single post by signature
func (c *Client) GetPost(ctx context.Context, signature string) (*feed.Post, error) {
	logger.Debug("Fetching post", "signature", signature)

	var response postResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&response).
		Get(fmt.Sprintf("/api/v1/posts/%s", url.PathEscape(signature)))

	if err := CheckResponse(resp, err); err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	post, ok := feed.Normalize(response.Post)
	if !ok {
		return nil, fmt.Errorf("get post %s: response has no identifier", signature)
	}
	return &post, nil
}
