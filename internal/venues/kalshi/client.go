// Package kalshi wraps the Kalshi trade API. Requests are signed with
// RSA-PSS per Kalshi's API-key scheme: the signature covers
// timestamp + method + path and rides in the KALSHI-ACCESS-* headers.
package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Kalshi production trade API
	DefaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2"

	defaultRateLimit = 10.0
	defaultBurst     = 5
)

// Client is a Kalshi trade API client.
type Client struct {
	baseURL     string
	accessKeyID string
	privateKey  *rsa.PrivateKey
	httpClient  *http.Client
	limiter     *rate.Limiter
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

// NewClient creates a Kalshi client. accessKeyID and privateKey may be
// nil/empty for public market-data endpoints.
func NewClient(accessKeyID string, privateKey *rsa.PrivateKey, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		accessKeyID: accessKeyID,
		privateKey:  privateKey,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// LoadPrivateKey reads an RSA private key from a PEM file.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return ParsePrivateKey(data)
}

// ParsePrivateKey parses a PEM-encoded RSA private key (PKCS#1 or PKCS#8).
func ParsePrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return key, nil
}

// Market is a Kalshi market.
type Market struct {
	Ticker       string `json:"ticker"`
	EventTicker  string `json:"event_ticker"`
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle"`
	YesSubTitle  string `json:"yes_sub_title"`
	Status       string `json:"status"`
	YesBid       int    `json:"yes_bid"`
	YesAsk       int    `json:"yes_ask"`
	NoBid        int    `json:"no_bid"`
	NoAsk        int    `json:"no_ask"`
	LastPrice    int    `json:"last_price"`
	Volume       int    `json:"volume"`
	OpenInterest int    `json:"open_interest"`
	CloseTime    string `json:"close_time"`
}

// Balance is the account balance in cents.
type Balance struct {
	Balance int64 `json:"balance"`
}

// GetMarkets fetches markets for an event ticker. An empty eventTicker
// returns markets across all events.
func (c *Client) GetMarkets(ctx context.Context, eventTicker string, limit int) ([]Market, error) {
	params := url.Values{}
	if eventTicker != "" {
		params.Set("event_ticker", eventTicker)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var result struct {
		Markets []Market `json:"markets"`
	}
	if err := c.do(ctx, "GET", "/markets", params, &result); err != nil {
		return nil, err
	}
	return result.Markets, nil
}

// GetMarket fetches a single market by ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (*Market, error) {
	var result struct {
		Market Market `json:"market"`
	}
	if err := c.do(ctx, "GET", "/markets/"+ticker, nil, &result); err != nil {
		return nil, err
	}
	return &result.Market, nil
}

// Position is an open portfolio position.
type Position struct {
	Ticker         string `json:"ticker"`
	Position       int    `json:"position"`
	MarketExposure int64  `json:"market_exposure"`
	RealizedPnl    int64  `json:"realized_pnl"`
	TotalTraded    int64  `json:"total_traded"`
}

// GetPositions fetches open portfolio positions. Requires credentials.
func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	if c.privateKey == nil {
		return nil, fmt.Errorf("positions require API credentials")
	}
	var result struct {
		MarketPositions []Position `json:"market_positions"`
	}
	if err := c.do(ctx, "GET", "/portfolio/positions", nil, &result); err != nil {
		return nil, err
	}
	return result.MarketPositions, nil
}

// GetBalance fetches the account balance. Requires credentials.
func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	if c.privateKey == nil {
		return nil, fmt.Errorf("balance requires API credentials")
	}
	var balance Balance
	if err := c.do(ctx, "GET", "/portfolio/balance", nil, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// do performs a request, signing it when credentials are present.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.privateKey != nil && c.accessKeyID != "" {
		if err := c.sign(req, method, path); err != nil {
			return fmt.Errorf("sign request: %w", err)
		}
	}

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
		return fmt.Errorf("kalshi API %s: status %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// sign adds the KALSHI-ACCESS-* authentication headers. The signed
// string is <ms timestamp><method><request path including API prefix>.
func (c *Client) sign(req *http.Request, method, path string) error {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	message := timestamp + method + parsed.Path + path

	hash := sha256.Sum256([]byte(message))
	signature, err := rsa.SignPSS(rand.Reader, c.privateKey, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return err
	}

	req.Header.Set("KALSHI-ACCESS-KEY", c.accessKeyID)
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", base64.StdEncoding.EncodeToString(signature))
	return nil
}
