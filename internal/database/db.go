package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"polybot-server/internal/logging"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	ConnString      string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
}

// NewDB creates a new database connection pool
func NewDB(cfg Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 25
	}
	if cfg.MinConns <= 0 {
		cfg.MinConns = 5
	}
	if cfg.MaxConnLifetime <= 0 {
		cfg.MaxConnLifetime = time.Hour
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logging.WithComponent("database").Info("connected to PostgreSQL")

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		logging.WithComponent("database").Info("database connection closed")
	}
}

// HealthCheck pings the database
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// RunMigrations executes database migrations in order
func (db *DB) RunMigrations(ctx context.Context) error {
	log := logging.WithComponent("database")
	log.Info("running database migrations")

	migrations := []string{
		// Users
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			name VARCHAR(255),
			subscription_tier VARCHAR(20) NOT NULL DEFAULT 'free',
			subscription_status VARCHAR(20) NOT NULL DEFAULT 'active',
			subscription_expires_at TIMESTAMPTZ,
			stripe_customer_id VARCHAR(255),
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			last_login_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE INDEX IF NOT EXISTS idx_users_stripe_customer ON users(stripe_customer_id)`,

		// Refresh-token sessions
		`CREATE TABLE IF NOT EXISTS user_sessions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			refresh_token_hash VARCHAR(255) NOT NULL,
			device_info TEXT,
			ip_address VARCHAR(64),
			expires_at TIMESTAMPTZ NOT NULL,
			revoked_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_used_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON user_sessions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_token ON user_sessions(refresh_token_hash)`,

		// One credential row per (user, exchange)
		`CREATE TABLE IF NOT EXISTS user_exchange_credentials (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			exchange VARCHAR(40) NOT NULL,
			vault_secret_path VARCHAR(255) NOT NULL,
			api_key_last_four VARCHAR(4),
			label VARCHAR(100),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			validation_status VARCHAR(20) NOT NULL DEFAULT 'pending',
			validation_error TEXT,
			last_validated_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(user_id, exchange)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_credentials_user ON user_exchange_credentials(user_id)`,

		// Simulated and live trades
		`CREATE TABLE IF NOT EXISTS polybot_trades (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			platform VARCHAR(40) NOT NULL,
			strategy VARCHAR(80) NOT NULL,
			symbol VARCHAR(80) NOT NULL,
			side VARCHAR(8) NOT NULL,
			size DECIMAL(20, 8) NOT NULL,
			entry_price DECIMAL(20, 8),
			exit_price DECIMAL(20, 8),
			profit DECIMAL(20, 8) NOT NULL DEFAULT 0,
			win BOOLEAN,
			simulated BOOLEAN NOT NULL DEFAULT TRUE,
			status VARCHAR(20) NOT NULL DEFAULT 'open',
			opened_at TIMESTAMPTZ NOT NULL,
			closed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_user ON polybot_trades(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_user_status ON polybot_trades(user_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_opened ON polybot_trades(opened_at)`,

		// Archived simulation sessions
		`CREATE TABLE IF NOT EXISTS polybot_simulation_sessions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			started_at TIMESTAMPTZ,
			ended_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			total_trades INTEGER NOT NULL DEFAULT 0,
			winning_trades INTEGER NOT NULL DEFAULT 0,
			total_profit DECIMAL(20, 8) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sim_sessions_user ON polybot_simulation_sessions(user_id)`,

		// Per-user bot configuration, one row per (user, key)
		`CREATE TABLE IF NOT EXISTS polybot_config (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			key VARCHAR(120) NOT NULL,
			value JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(user_id, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_config_user ON polybot_config(user_id)`,

		// Audit log for sensitive operations
		`CREATE TABLE IF NOT EXISTS polybot_audit_log (
			id UUID PRIMARY KEY,
			user_id UUID,
			action VARCHAR(80) NOT NULL,
			target VARCHAR(255),
			detail JSONB,
			ip_address VARCHAR(64),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_user ON polybot_audit_log(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_action ON polybot_audit_log(action)`,

		// TradingView webhook alerts
		`CREATE TABLE IF NOT EXISTS polybot_webhook_alerts (
			id UUID PRIMARY KEY,
			strategy VARCHAR(80),
			symbol VARCHAR(80) NOT NULL,
			action VARCHAR(10) NOT NULL,
			price DECIMAL(20, 8),
			raw_payload JSONB,
			forwarded BOOLEAN NOT NULL DEFAULT FALSE,
			forward_error TEXT,
			received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_received ON polybot_webhook_alerts(received_at)`,

		// Stored procedure fast path for simulation resets
		`CREATE OR REPLACE FUNCTION polybot_reset_simulation(p_user_id UUID)
		RETURNS UUID AS $$
		DECLARE
			v_session_id UUID := gen_random_uuid();
		BEGIN
			INSERT INTO polybot_simulation_sessions
				(id, user_id, started_at, ended_at, total_trades, winning_trades, total_profit)
			SELECT v_session_id, p_user_id, MIN(opened_at), NOW(),
				COUNT(*), COUNT(*) FILTER (WHERE win), COALESCE(SUM(profit), 0)
			FROM polybot_trades
			WHERE user_id = p_user_id AND simulated;

			DELETE FROM polybot_trades WHERE user_id = p_user_id AND simulated;

			RETURN v_session_id;
		END;
		$$ LANGUAGE plpgsql`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}

	log.Info("database migrations complete", "count", len(migrations))
	return nil
}
