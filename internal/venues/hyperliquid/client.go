// Package hyperliquid wraps the Hyperliquid public info API. All
// queries go through a single POST /info endpoint selected by a type
// field in the body.
package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Hyperliquid mainnet API
	DefaultBaseURL = "https://api.hyperliquid.xyz"

	defaultRateLimit = 5.0
	defaultBurst     = 3
)

// Client is a Hyperliquid info API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit sets custom rate limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a Hyperliquid info client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetAllMids returns mid prices for every perp, keyed by coin symbol.
// Prices come back as decimal strings.
func (c *Client) GetAllMids(ctx context.Context) (map[string]string, error) {
	var mids map[string]string
	if err := c.info(ctx, map[string]interface{}{"type": "allMids"}, &mids); err != nil {
		return nil, err
	}
	return mids, nil
}

// AssetPosition is one open perp position.
type AssetPosition struct {
	Position struct {
		Coin           string `json:"coin"`
		Szi            string `json:"szi"` // signed size
		EntryPx        string `json:"entryPx"`
		UnrealizedPnl  string `json:"unrealizedPnl"`
		ReturnOnEquity string `json:"returnOnEquity"`
	} `json:"position"`
}

// UserState is an account's margin and position summary.
type UserState struct {
	AssetPositions []AssetPosition `json:"assetPositions"`
	MarginSummary  struct {
		AccountValue string `json:"accountValue"`
		TotalNtlPos  string `json:"totalNtlPos"`
	} `json:"marginSummary"`
}

// GetUserState fetches perp account state for a wallet address.
func (c *Client) GetUserState(ctx context.Context, address string) (*UserState, error) {
	var state UserState
	body := map[string]interface{}{"type": "clearinghouseState", "user": address}
	if err := c.info(ctx, body, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// info performs a POST /info request with rate limiting.
func (c *Client) info(ctx context.Context, payload map[string]interface{}, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/info", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hyperliquid API: status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
