package database

import (
	"time"

	"polybot-server/internal/tiers"
)

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusPastDue   SubscriptionStatus = "past_due"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// User represents a platform user
type User struct {
	ID                    string             `json:"id"`
	Email                 string             `json:"email"`
	PasswordHash          string             `json:"-"` // Never serialize
	Name                  string             `json:"name,omitempty"`
	SubscriptionTier      tiers.Tier         `json:"subscription_tier"`
	SubscriptionStatus    SubscriptionStatus `json:"subscription_status"`
	SubscriptionExpiresAt *time.Time         `json:"subscription_expires_at,omitempty"`
	StripeCustomerID      string             `json:"stripe_customer_id,omitempty"`
	IsAdmin               bool               `json:"is_admin"`
	LastLoginAt           *time.Time         `json:"last_login_at,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// UserSession represents an active user session with refresh token
type UserSession struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	RefreshTokenHash string     `json:"-"` // Never serialize
	DeviceInfo       string     `json:"device_info,omitempty"`
	IPAddress        string     `json:"ip_address,omitempty"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	LastUsedAt       time.Time  `json:"last_used_at"`
}

// ValidationStatus for exchange credentials
type ValidationStatus string

const (
	ValidationPending ValidationStatus = "pending"
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
)

// ExchangeCredential references a user's exchange API keys. Secret
// material lives in Vault; only the reference and last four characters
// are stored here. One row per (user, exchange).
type ExchangeCredential struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	Exchange         string           `json:"exchange"`
	VaultSecretPath  string           `json:"-"` // Never expose vault path
	APIKeyLastFour   string           `json:"api_key_last_four,omitempty"`
	Label            string           `json:"label,omitempty"`
	IsActive         bool             `json:"is_active"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	ValidationError  string           `json:"validation_error,omitempty"`
	LastValidatedAt  *time.Time       `json:"last_validated_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TradeStatus for recorded trades
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// Trade is a simulated or live trade record
type Trade struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	Platform   string      `json:"platform"` // polymarket, kalshi, alpaca, hyperliquid, ibkr
	Strategy   string      `json:"strategy"`
	Symbol     string      `json:"symbol"`
	Side       string      `json:"side"` // buy or sell
	Size       float64     `json:"size"`
	EntryPrice *float64    `json:"entry_price,omitempty"`
	ExitPrice  *float64    `json:"exit_price,omitempty"`
	Profit     float64     `json:"profit"`
	Win        *bool       `json:"win,omitempty"`
	Simulated  bool        `json:"simulated"`
	Status     TradeStatus `json:"status"`
	OpenedAt   time.Time   `json:"opened_at"`
	ClosedAt   *time.Time  `json:"closed_at,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// SimulationSession is an archived snapshot of a paper-trading run,
// written when the user resets their simulation.
type SimulationSession struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	EndedAt       time.Time  `json:"ended_at"`
	TotalTrades   int        `json:"total_trades"`
	WinningTrades int        `json:"winning_trades"`
	TotalProfit   float64    `json:"total_profit"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ConfigEntry is a per-user bot configuration key/value pair. Values are
// arbitrary JSON.
type ConfigEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Key       string    `json:"key"`
	Value     []byte    `json:"value"` // Raw JSON
	UpdatedAt time.Time `json:"updated_at"`
}

// AuditEntry records a sensitive operation
type AuditEntry struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id,omitempty"`
	Action    string                 `json:"action"`
	Target    string                 `json:"target,omitempty"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// WebhookAlert is a normalized TradingView alert
type WebhookAlert struct {
	ID           string    `json:"id"`
	Strategy     string    `json:"strategy,omitempty"`
	Symbol       string    `json:"symbol"`
	Action       string    `json:"action"` // buy, sell, close
	Price        *float64  `json:"price,omitempty"`
	RawPayload   []byte    `json:"-"`
	Forwarded    bool      `json:"forwarded"`
	ForwardError string    `json:"forward_error,omitempty"`
	ReceivedAt   time.Time `json:"received_at"`
}
