// Package alpaca wraps the Alpaca market data API for stock quotes
// and bars.
package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Alpaca market data API
	DefaultBaseURL = "https://data.alpaca.markets"

	defaultRateLimit = 3.0 // free plan allows 200 req/min
	defaultBurst     = 3
)

// Client is an Alpaca market data client.
type Client struct {
	baseURL    string
	keyID      string
	secretKey  string
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

// NewClient creates an Alpaca market data client.
func NewClient(keyID, secretKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		keyID:      keyID,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Quote is the latest NBBO quote for a symbol.
type Quote struct {
	AskPrice  float64   `json:"ap"`
	AskSize   int       `json:"as"`
	BidPrice  float64   `json:"bp"`
	BidSize   int       `json:"bs"`
	Timestamp time.Time `json:"t"`
}

// Bar is an OHLCV aggregate.
type Bar struct {
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    int64     `json:"v"`
	Timestamp time.Time `json:"t"`
}

// GetLatestQuote fetches the latest quote for a symbol.
func (c *Client) GetLatestQuote(ctx context.Context, symbol string) (*Quote, error) {
	var result struct {
		Quote Quote `json:"quote"`
	}
	path := fmt.Sprintf("/v2/stocks/%s/quotes/latest", symbol)
	if err := c.get(ctx, path, nil, &result); err != nil {
		return nil, err
	}
	return &result.Quote, nil
}

// GetBars fetches daily bars for a symbol.
func (c *Client) GetBars(ctx context.Context, symbol string, limit int) ([]Bar, error) {
	params := url.Values{}
	params.Set("timeframe", "1Day")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var result struct {
		Bars []Bar `json:"bars"`
	}
	path := fmt.Sprintf("/v2/stocks/%s/bars", symbol)
	if err := c.get(ctx, path, params, &result); err != nil {
		return nil, err
	}
	return result.Bars, nil
}

// get performs an authenticated GET request with rate limiting.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("APCA-API-KEY-ID", c.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.secretKey)

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
		return fmt.Errorf("alpaca API %s: status %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
