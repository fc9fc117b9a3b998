package api

import (
	"context"
	"fmt"

	"github.com/zfogg/solfeed/pkg/logger"
)

// BatchReputation requests current reputation scores for wallets in one call
func (c *Client) BatchReputation(ctx context.Context, wallets []string) ([]ReputationScore, error) {
	if len(wallets) == 0 {
		return nil, nil
	}
	logger.Debug("Fetching reputation batch", "count", len(wallets))

	var response reputationResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(reputationRequest{Addresses: wallets}).
		SetResult(&response).
		Post("/api/v1/reputation/batch")

	if err := CheckResponse(resp, err); err != nil {
		return nil, fmt.Errorf("batch reputation: %w", err)
	}
	return response.Scores, nil
}

// BatchReceiptStatus requests receipt (bookmark) status for post signatures
func (c *Client) BatchReceiptStatus(ctx context.Context, signatures []string) ([]ReceiptStatus, error) {
	if len(signatures) == 0 {
		return nil, nil
	}
	logger.Debug("Fetching receipt status batch", "count", len(signatures))

	var response receiptStatusResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(receiptStatusRequest{Signatures: signatures}).
		SetResult(&response).
		Post("/api/v1/receipts/batch-status")

	if err := CheckResponse(resp, err); err != nil {
		return nil, fmt.Errorf("batch receipt status: %w", err)
	}
	return response.Statuses, nil
}
