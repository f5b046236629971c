package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const credentialColumns = `id, user_id, exchange, vault_secret_path, api_key_last_four, label,
	is_active, validation_status, validation_error, last_validated_at, created_at, updated_at`

// UpsertCredential inserts or replaces the credential reference for a
// (user, exchange) pair. The UNIQUE constraint guarantees one row per
// pair regardless of concurrent writers.
func (r *Repository) UpsertCredential(ctx context.Context, cred *ExchangeCredential) error {
	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}
	if cred.ValidationStatus == "" {
		cred.ValidationStatus = ValidationPending
	}
	query := `
		INSERT INTO user_exchange_credentials
			(id, user_id, exchange, vault_secret_path, api_key_last_four, label, is_active, validation_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, exchange) DO UPDATE
		SET vault_secret_path = EXCLUDED.vault_secret_path,
			api_key_last_four = EXCLUDED.api_key_last_four,
			label = EXCLUDED.label,
			is_active = EXCLUDED.is_active,
			validation_status = EXCLUDED.validation_status,
			validation_error = NULL,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		cred.ID, cred.UserID, cred.Exchange, cred.VaultSecretPath,
		cred.APIKeyLastFour, cred.Label, cred.IsActive, cred.ValidationStatus,
	).Scan(&cred.ID, &cred.CreatedAt, &cred.UpdatedAt)
}

func scanCredential(row pgx.Row) (*ExchangeCredential, error) {
	cred := &ExchangeCredential{}
	var lastFour, label, valErr *string
	err := row.Scan(
		&cred.ID, &cred.UserID, &cred.Exchange, &cred.VaultSecretPath,
		&lastFour, &label, &cred.IsActive, &cred.ValidationStatus,
		&valErr, &cred.LastValidatedAt, &cred.CreatedAt, &cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lastFour != nil {
		cred.APIKeyLastFour = *lastFour
	}
	if label != nil {
		cred.Label = *label
	}
	if valErr != nil {
		cred.ValidationError = *valErr
	}
	return cred, nil
}

// GetCredentialForUser fetches the credential reference for one exchange
func (r *Repository) GetCredentialForUser(ctx context.Context, userID, exchange string) (*ExchangeCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM user_exchange_credentials WHERE user_id = $1 AND exchange = $2`
	return scanCredential(r.db.Pool.QueryRow(ctx, query, userID, exchange))
}

// GetCredentialsForUser lists all credential references for a user
func (r *Repository) GetCredentialsForUser(ctx context.Context, userID string) ([]*ExchangeCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM user_exchange_credentials WHERE user_id = $1 ORDER BY exchange`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*ExchangeCredential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// SetCredentialValidation records a validation outcome
func (r *Repository) SetCredentialValidation(ctx context.Context, userID, exchange string, status ValidationStatus, validationError string) error {
	query := `
		UPDATE user_exchange_credentials
		SET validation_status = $3, validation_error = NULLIF($4, ''), last_validated_at = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND exchange = $2
	`
	tag, err := r.db.Pool.Exec(ctx, query, userID, exchange, status, validationError)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCredentialForUser removes a credential reference
func (r *Repository) DeleteCredentialForUser(ctx context.Context, userID, exchange string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM user_exchange_credentials WHERE user_id = $1 AND exchange = $2`, userID, exchange)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
