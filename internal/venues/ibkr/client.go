// Package ibkr talks to a locally running Interactive Brokers Client
// Portal gateway. The gateway serves a self-signed certificate on
// localhost, so TLS verification is typically disabled against it.
package ibkr

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultGatewayURL is the default Client Portal gateway address
const DefaultGatewayURL = "https://localhost:5000"

// Client is an IBKR Client Portal gateway client.
type Client struct {
	gatewayURL string
	httpClient *http.Client
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithGatewayURL sets a custom gateway address.
func WithGatewayURL(url string) ClientOption {
	return func(c *Client) {
		c.gatewayURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a gateway client. skipVerify disables TLS
// certificate checks for the gateway's self-signed certificate.
func NewClient(skipVerify bool, opts ...ClientOption) *Client {
	transport := &http.Transport{}
	if skipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	c := &Client{
		gatewayURL: DefaultGatewayURL,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// AuthStatus reports the gateway's brokerage session state.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Connected     bool   `json:"connected"`
	Competing     bool   `json:"competing"`
	Message       string `json:"message,omitempty"`
}

// GetAuthStatus checks whether the gateway session is live.
func (c *Client) GetAuthStatus(ctx context.Context) (*AuthStatus, error) {
	var status AuthStatus
	if err := c.do(ctx, "POST", "/v1/api/iserver/auth/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Tickle keeps the gateway session alive. The gateway logs sessions
// out after a few minutes without it.
func (c *Client) Tickle(ctx context.Context) error {
	var result map[string]interface{}
	return c.do(ctx, "POST", "/v1/api/tickle", &result)
}

// Account is a brokerage account visible through the gateway.
type Account struct {
	ID          string `json:"id"`
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	Currency    string `json:"currency"`
}

// GetAccounts lists the brokerage accounts.
func (c *Client) GetAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := c.do(ctx, "GET", "/v1/api/portfolio/accounts", &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Position is an open portfolio position.
type Position struct {
	ConID         int64   `json:"conid"`
	ContractDesc  string  `json:"contractDesc"`
	Position      float64 `json:"position"`
	MktPrice      float64 `json:"mktPrice"`
	MktValue      float64 `json:"mktValue"`
	AvgCost       float64 `json:"avgCost"`
	UnrealizedPnl float64 `json:"unrealizedPnl"`
	Currency      string  `json:"currency"`
}

// GetPositions lists positions for an account (first page).
func (c *Client) GetPositions(ctx context.Context, accountID string) ([]Position, error) {
	var positions []Position
	path := fmt.Sprintf("/v1/api/portfolio/%s/positions/0", accountID)
	if err := c.do(ctx, "GET", path, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (c *Client) do(ctx context.Context, method, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.gatewayURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway %s: status %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
