package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const tradeColumns = `id, user_id, platform, strategy, symbol, side, size, entry_price, exit_price,
	profit, win, simulated, status, opened_at, closed_at, created_at`

// CreateTrade inserts a new trade for a user
func (r *Repository) CreateTrade(ctx context.Context, trade *Trade) error {
	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}
	if trade.Status == "" {
		trade.Status = TradeOpen
	}
	if trade.OpenedAt.IsZero() {
		trade.OpenedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO polybot_trades (id, user_id, platform, strategy, symbol, side, size,
			entry_price, profit, win, simulated, status, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		trade.ID, trade.UserID, trade.Platform, trade.Strategy, trade.Symbol, trade.Side,
		trade.Size, trade.EntryPrice, trade.Profit, trade.Win, trade.Simulated,
		trade.Status, trade.OpenedAt,
	).Scan(&trade.CreatedAt)
}

// CloseTrade records a trade's exit
func (r *Repository) CloseTrade(ctx context.Context, userID, tradeID string, exitPrice, profit float64) error {
	win := profit > 0
	query := `
		UPDATE polybot_trades
		SET exit_price = $3, profit = $4, win = $5, status = 'closed', closed_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = 'open'
	`
	tag, err := r.db.Pool.Exec(ctx, query, tradeID, userID, exitPrice, profit, win)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTrade(row pgx.Row) (*Trade, error) {
	trade := &Trade{}
	err := row.Scan(
		&trade.ID, &trade.UserID, &trade.Platform, &trade.Strategy, &trade.Symbol,
		&trade.Side, &trade.Size, &trade.EntryPrice, &trade.ExitPrice, &trade.Profit,
		&trade.Win, &trade.Simulated, &trade.Status, &trade.OpenedAt, &trade.ClosedAt,
		&trade.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return trade, nil
}

func (r *Repository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*Trade, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

// GetTradeForUser retrieves a single trade scoped to a user
func (r *Repository) GetTradeForUser(ctx context.Context, userID, tradeID string) (*Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM polybot_trades WHERE id = $1 AND user_id = $2`
	return scanTrade(r.db.Pool.QueryRow(ctx, query, tradeID, userID))
}

// GetTradesForUser retrieves a user's trades with pagination, newest first
func (r *Repository) GetTradesForUser(ctx context.Context, userID string, limit, offset int) ([]*Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM polybot_trades
		WHERE user_id = $1
		ORDER BY opened_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.queryTrades(ctx, query, userID, limit, offset)
}

// GetOpenTradesForUser retrieves a user's open trades
func (r *Repository) GetOpenTradesForUser(ctx context.Context, userID string) ([]*Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM polybot_trades
		WHERE user_id = $1 AND status = 'open'
		ORDER BY opened_at DESC
	`
	return r.queryTrades(ctx, query, userID)
}

// GetClosedTradesForUser retrieves a user's closed trades ordered by
// close time ascending, as required by the metrics calculator.
func (r *Repository) GetClosedTradesForUser(ctx context.Context, userID string, simulatedOnly bool) ([]*Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM polybot_trades
		WHERE user_id = $1 AND status = 'closed' AND ($2 = FALSE OR simulated)
		ORDER BY closed_at ASC
	`
	return r.queryTrades(ctx, query, userID, simulatedOnly)
}

// DeleteTradeForUser removes a trade scoped to a user
func (r *Repository) DeleteTradeForUser(ctx context.Context, userID, tradeID string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM polybot_trades WHERE id = $1 AND user_id = $2`, tradeID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountTradesForUser counts all trades for a user
func (r *Repository) CountTradesForUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM polybot_trades WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}
