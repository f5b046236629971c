package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"polybot-server/internal/logging"
)

// ResetSimulation archives the user's current paper trades into a
// simulation session snapshot and clears them. The stored procedure is
// the fast path; when it is missing (e.g. a database restored without
// functions) the same work runs in a manual transaction.
func (r *Repository) ResetSimulation(ctx context.Context, userID string) (string, error) {
	var sessionID string
	err := r.db.Pool.QueryRow(ctx, `SELECT polybot_reset_simulation($1)`, userID).Scan(&sessionID)
	if err == nil {
		return sessionID, nil
	}

	// SQLSTATE 42883: undefined_function
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "42883" {
		return "", fmt.Errorf("simulation reset failed: %w", err)
	}

	logging.WithComponent("database").Warn("reset stored procedure missing, using transactional fallback")
	return r.resetSimulationTx(ctx, userID)
}

// resetSimulationTx is the manual fallback: snapshot stats, archive,
// delete, all within one transaction.
func (r *Repository) resetSimulationTx(ctx context.Context, userID string) (string, error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	sessionID := uuid.New().String()
	_, err = tx.Exec(ctx, `
		INSERT INTO polybot_simulation_sessions
			(id, user_id, started_at, ended_at, total_trades, winning_trades, total_profit)
		SELECT $1, $2, MIN(opened_at), NOW(),
			COUNT(*), COUNT(*) FILTER (WHERE win), COALESCE(SUM(profit), 0)
		FROM polybot_trades
		WHERE user_id = $2 AND simulated
	`, sessionID, userID)
	if err != nil {
		return "", fmt.Errorf("archiving simulation session: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM polybot_trades WHERE user_id = $1 AND simulated`, userID); err != nil {
		return "", fmt.Errorf("clearing simulated trades: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return sessionID, nil
}

// GetSimulationSessions returns a user's archived sessions, newest first
func (r *Repository) GetSimulationSessions(ctx context.Context, userID string, limit int) ([]*SimulationSession, error) {
	query := `
		SELECT id, user_id, started_at, ended_at, total_trades, winning_trades, total_profit, created_at
		FROM polybot_simulation_sessions
		WHERE user_id = $1
		ORDER BY ended_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*SimulationSession
	for rows.Next() {
		s := &SimulationSession{}
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.StartedAt, &s.EndedAt,
			&s.TotalTrades, &s.WinningTrades, &s.TotalProfit, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
