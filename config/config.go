package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerConfig   ServerConfig   `json:"server"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	AuthConfig     AuthConfig     `json:"auth"`
	VaultConfig    VaultConfig    `json:"vault"`
	BillingConfig  BillingConfig  `json:"billing"`
	BotConfig      BotConfig      `json:"bot"`
	WebhookConfig  WebhookConfig  `json:"webhook"`
	VenuesConfig   VenuesConfig   `json:"venues"`
	LoggingConfig  LoggingConfig  `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins
	TLSEnabled      bool   `json:"tls_enabled"`
	TLSCertFile     string `json:"tls_cert_file"`
	TLSKeyFile      string `json:"tls_key_file"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	URL             string `json:"url"` // Full connection string; overrides the parts below
	Host            string `json:"host"`
	Port            int    `json:"port"`
	User            string `json:"user"`
	Password        string `json:"password"`
	Name            string `json:"name"`
	SSLMode         string `json:"ssl_mode"`
	MaxConns        int    `json:"max_conns"`
	MinConns        int    `json:"min_conns"`
	MaxConnLifetime int    `json:"max_conn_lifetime"` // Minutes
}

// RedisConfig holds Redis configuration for caching and rate limiting
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret             string        `json:"jwt_secret"`
	AccessTokenDuration   time.Duration `json:"access_token_duration"`
	RefreshTokenDuration  time.Duration `json:"refresh_token_duration"`
	MinPasswordLength     int           `json:"min_password_length"`
	AllowMultipleSessions bool          `json:"allow_multiple_sessions"`
	MaxSessionsPerUser    int           `json:"max_sessions_per_user"`
	AdminEmail            string        `json:"admin_email"`
	AdminPassword         string        `json:"admin_password"`
}

// VaultConfig holds HashiCorp Vault configuration for exchange credentials
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`  // KV secrets engine mount path
	SecretPath string `json:"secret_path"` // Path prefix for credentials
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// BillingConfig holds Stripe subscription configuration
type BillingConfig struct {
	Enabled             bool   `json:"enabled"`
	StripeSecretKey     string `json:"stripe_secret_key"`
	StripeWebhookSecret string `json:"stripe_webhook_secret"`
	ProPriceID          string `json:"pro_price_id"`
	ElitePriceID        string `json:"elite_price_id"`
	CheckoutSuccessURL  string `json:"checkout_success_url"`
	CheckoutCancelURL   string `json:"checkout_cancel_url"`
	PortalReturnURL     string `json:"portal_return_url"`
}

// BotConfig holds configuration for reaching the external trading bot process
type BotConfig struct {
	BaseURL       string        `json:"base_url"`
	APIKey        string        `json:"api_key"`
	PollInterval  time.Duration `json:"poll_interval"`
	HealthTimeout time.Duration `json:"health_timeout"`
}

// WebhookConfig holds TradingView webhook intake configuration
type WebhookConfig struct {
	SharedSecret   string `json:"shared_secret"`
	ForwardEnabled bool   `json:"forward_enabled"`
	ForwardURL     string `json:"forward_url"`
	ForwardSecret  string `json:"forward_secret"`
}

// VenuesConfig holds per-venue market data client configuration
type VenuesConfig struct {
	Polymarket  PolymarketConfig  `json:"polymarket"`
	Kalshi      KalshiConfig      `json:"kalshi"`
	Alpaca      AlpacaConfig      `json:"alpaca"`
	Hyperliquid HyperliquidConfig `json:"hyperliquid"`
	IBKR        IBKRConfig        `json:"ibkr"`
}

type PolymarketConfig struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"base_url"`
}

type KalshiConfig struct {
	Enabled        bool   `json:"enabled"`
	BaseURL        string `json:"base_url"`
	AccessKeyID    string `json:"access_key_id"`
	PrivateKeyPath string `json:"private_key_path"` // PEM-encoded RSA private key
}

type AlpacaConfig struct {
	Enabled   bool   `json:"enabled"`
	DataURL   string `json:"data_url"`
	KeyID     string `json:"key_id"`
	SecretKey string `json:"secret_key"`
}

type HyperliquidConfig struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"base_url"`
}

type IBKRConfig struct {
	Enabled    bool   `json:"enabled"`
	GatewayURL string `json:"gateway_url"`
	SkipVerify bool   `json:"skip_verify"` // Client Portal gateway ships a self-signed cert
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Note: exchange API keys are NOT read from environment. All exchange
// credentials are per-user and stored through the secrets service.
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "*")
	cfg.ServerConfig.TLSEnabled = getEnvOrDefault("SERVER_TLS_ENABLED", "false") == "true"
	cfg.ServerConfig.TLSCertFile = getEnvOrDefault("SERVER_TLS_CERT", "")
	cfg.ServerConfig.TLSKeyFile = getEnvOrDefault("SERVER_TLS_KEY", "")
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 30)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	// Database config
	cfg.DatabaseConfig.URL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseConfig.URL)
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", "localhost")
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", 5432)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", "polybot")
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Name = getEnvOrDefault("DB_NAME", "polybot")
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSL_MODE", "disable")
	cfg.DatabaseConfig.MaxConns = getEnvIntOrDefault("DB_MAX_CONNS", 25)
	cfg.DatabaseConfig.MinConns = getEnvIntOrDefault("DB_MIN_CONNS", 5)
	cfg.DatabaseConfig.MaxConnLifetime = getEnvIntOrDefault("DB_MAX_CONN_LIFETIME", 60)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", "localhost:6379")
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", 0)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", 10)

	// Auth config
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", 15*time.Minute)
	cfg.AuthConfig.RefreshTokenDuration = getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_DURATION", 7*24*time.Hour)
	cfg.AuthConfig.MinPasswordLength = getEnvIntOrDefault("AUTH_MIN_PASSWORD_LENGTH", 8)
	cfg.AuthConfig.AllowMultipleSessions = getEnvOrDefault("AUTH_ALLOW_MULTIPLE_SESSIONS", "true") == "true"
	cfg.AuthConfig.MaxSessionsPerUser = getEnvIntOrDefault("AUTH_MAX_SESSIONS_PER_USER", 10)
	cfg.AuthConfig.AdminEmail = getEnvOrDefault("AUTH_ADMIN_EMAIL", cfg.AuthConfig.AdminEmail)
	cfg.AuthConfig.AdminPassword = getEnvOrDefault("AUTH_ADMIN_PASSWORD", cfg.AuthConfig.AdminPassword)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", "http://localhost:8200")
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", "secret")
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", "polybot/credentials")
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", "false") == "true"

	// Billing config
	cfg.BillingConfig.Enabled = getEnvOrDefault("BILLING_ENABLED", "false") == "true"
	cfg.BillingConfig.StripeSecretKey = getEnvOrDefault("STRIPE_SECRET_KEY", cfg.BillingConfig.StripeSecretKey)
	cfg.BillingConfig.StripeWebhookSecret = getEnvOrDefault("STRIPE_WEBHOOK_SECRET", cfg.BillingConfig.StripeWebhookSecret)
	cfg.BillingConfig.ProPriceID = getEnvOrDefault("STRIPE_PRO_PRICE_ID", cfg.BillingConfig.ProPriceID)
	cfg.BillingConfig.ElitePriceID = getEnvOrDefault("STRIPE_ELITE_PRICE_ID", cfg.BillingConfig.ElitePriceID)
	cfg.BillingConfig.CheckoutSuccessURL = getEnvOrDefault("STRIPE_CHECKOUT_SUCCESS_URL", cfg.BillingConfig.CheckoutSuccessURL)
	cfg.BillingConfig.CheckoutCancelURL = getEnvOrDefault("STRIPE_CHECKOUT_CANCEL_URL", cfg.BillingConfig.CheckoutCancelURL)
	cfg.BillingConfig.PortalReturnURL = getEnvOrDefault("STRIPE_PORTAL_RETURN_URL", cfg.BillingConfig.PortalReturnURL)

	// Bot config
	cfg.BotConfig.BaseURL = getEnvOrDefault("BOT_BASE_URL", "http://localhost:9000")
	cfg.BotConfig.APIKey = getEnvOrDefault("BOT_API_KEY", cfg.BotConfig.APIKey)
	cfg.BotConfig.PollInterval = getEnvDurationOrDefault("BOT_POLL_INTERVAL", 30*time.Second)
	cfg.BotConfig.HealthTimeout = getEnvDurationOrDefault("BOT_HEALTH_TIMEOUT", 5*time.Second)

	// Webhook config
	cfg.WebhookConfig.SharedSecret = getEnvOrDefault("TRADINGVIEW_WEBHOOK_SECRET", cfg.WebhookConfig.SharedSecret)
	cfg.WebhookConfig.ForwardEnabled = getEnvOrDefault("WEBHOOK_FORWARD_ENABLED", "false") == "true"
	cfg.WebhookConfig.ForwardURL = getEnvOrDefault("WEBHOOK_FORWARD_URL", cfg.WebhookConfig.ForwardURL)
	cfg.WebhookConfig.ForwardSecret = getEnvOrDefault("WEBHOOK_FORWARD_SECRET", cfg.WebhookConfig.ForwardSecret)

	// Venue configs
	cfg.VenuesConfig.Polymarket.Enabled = getEnvOrDefault("POLYMARKET_ENABLED", "true") == "true"
	cfg.VenuesConfig.Polymarket.BaseURL = getEnvOrDefault("POLYMARKET_GAMMA_URL", "https://gamma-api.polymarket.com")
	cfg.VenuesConfig.Kalshi.Enabled = getEnvOrDefault("KALSHI_ENABLED", "false") == "true"
	cfg.VenuesConfig.Kalshi.BaseURL = getEnvOrDefault("KALSHI_BASE_URL", "https://api.elections.kalshi.com/trade-api/v2")
	cfg.VenuesConfig.Kalshi.AccessKeyID = getEnvOrDefault("KALSHI_ACCESS_KEY_ID", cfg.VenuesConfig.Kalshi.AccessKeyID)
	cfg.VenuesConfig.Kalshi.PrivateKeyPath = getEnvOrDefault("KALSHI_PRIVATE_KEY_PATH", cfg.VenuesConfig.Kalshi.PrivateKeyPath)
	cfg.VenuesConfig.Alpaca.Enabled = getEnvOrDefault("ALPACA_ENABLED", "false") == "true"
	cfg.VenuesConfig.Alpaca.DataURL = getEnvOrDefault("ALPACA_DATA_URL", "https://data.alpaca.markets")
	cfg.VenuesConfig.Alpaca.KeyID = getEnvOrDefault("ALPACA_KEY_ID", cfg.VenuesConfig.Alpaca.KeyID)
	cfg.VenuesConfig.Alpaca.SecretKey = getEnvOrDefault("ALPACA_SECRET_KEY", cfg.VenuesConfig.Alpaca.SecretKey)
	cfg.VenuesConfig.Hyperliquid.Enabled = getEnvOrDefault("HYPERLIQUID_ENABLED", "false") == "true"
	cfg.VenuesConfig.Hyperliquid.BaseURL = getEnvOrDefault("HYPERLIQUID_BASE_URL", "https://api.hyperliquid.xyz")
	cfg.VenuesConfig.IBKR.Enabled = getEnvOrDefault("IBKR_ENABLED", "false") == "true"
	cfg.VenuesConfig.IBKR.GatewayURL = getEnvOrDefault("IBKR_GATEWAY_URL", "https://localhost:5000")
	cfg.VenuesConfig.IBKR.SkipVerify = getEnvOrDefault("IBKR_SKIP_VERIFY", "true") == "true"

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

// ConnString assembles a pgx connection string from the discrete fields
// unless a full URL was provided.
func (c *DatabaseConfig) ConnString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Config{
		ServerConfig: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			AllowedOrigins:  "*",
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "polybot",
			Name:     "polybot",
			SSLMode:  "disable",
			MaxConns: 25,
			MinConns: 5,
		},
		RedisConfig: RedisConfig{
			Enabled:  false,
			Address:  "localhost:6379",
			PoolSize: 10,
		},
		BotConfig: BotConfig{
			BaseURL:       "http://localhost:9000",
			PollInterval:  30 * time.Second,
			HealthTimeout: 5 * time.Second,
		},
		VenuesConfig: VenuesConfig{
			Polymarket: PolymarketConfig{
				Enabled: true,
				BaseURL: "https://gamma-api.polymarket.com",
			},
		},
		LoggingConfig: LoggingConfig{
			Level:       "INFO",
			Output:      "stdout",
			JSONFormat:  true,
			IncludeFile: false,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
