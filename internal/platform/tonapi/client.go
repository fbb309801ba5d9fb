// Package tonapi is a typed client for the tonapi.io v2 HTTP API, used to
// observe incoming transfers to the treasury account. All payload parsing
// happens here, behind domain.TransferQuerier, so the reconciler never
// touches raw wire fields.
package tonapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"context"

	"github.com/okozhin/icewheel/internal/domain"
)

// DefaultBaseURL is the public tonapi.io endpoint.
const DefaultBaseURL = "https://tonapi.io"

// Client queries the TON blockchain through tonapi.io.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a tonapi Client. baseURL may be empty to use the
// public endpoint; apiKey may be empty for unauthenticated (rate-limited)
// access.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// RecentTransfers returns up to limit recent incoming transfers to the
// given account, newest first, normalized into domain transfers.
// Transactions without a usable incoming value message are dropped.
func (c *Client) RecentTransfers(ctx context.Context, account string, limit int) ([]domain.Transfer, error) {
	if limit <= 0 {
		limit = 20
	}

	endpoint := fmt.Sprintf("%s/v2/blockchain/accounts/%s/transactions?limit=%d",
		c.baseURL, url.PathEscape(account), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("tonapi: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tonapi: fetch transactions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("tonapi: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var payload transactionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("tonapi: decode transactions: %w", err)
	}

	transfers := make([]domain.Transfer, 0, len(payload.Transactions))
	for _, tx := range payload.Transactions {
		if t, ok := normalizeTransfer(tx); ok {
			transfers = append(transfers, t)
		}
	}
	return transfers, nil
}

// Compile-time interface check.
var _ domain.TransferQuerier = (*Client)(nil)
