package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SetConfigValue upserts a config key for a user. One row per
// (user, key); concurrent writers resolve through the conflict target.
func (r *Repository) SetConfigValue(ctx context.Context, userID, key string, value []byte) error {
	query := `
		INSERT INTO polybot_config (id, user_id, key, value, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()
	`
	_, err := r.db.Pool.Exec(ctx, query, uuid.New().String(), userID, key, value)
	return err
}

// GetConfigValue fetches a single config key for a user
func (r *Repository) GetConfigValue(ctx context.Context, userID, key string) ([]byte, error) {
	var value []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT value FROM polybot_config WHERE user_id = $1 AND key = $2`,
		userID, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

// GetAllConfigForUser fetches all config entries for a user
func (r *Repository) GetAllConfigForUser(ctx context.Context, userID string) ([]*ConfigEntry, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, user_id, key, value, updated_at FROM polybot_config WHERE user_id = $1 ORDER BY key`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*ConfigEntry
	for rows.Next() {
		e := &ConfigEntry{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.Key, &e.Value, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteConfigValue removes a config key for a user
func (r *Repository) DeleteConfigValue(ctx context.Context, userID, key string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM polybot_config WHERE user_id = $1 AND key = $2`, userID, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
