package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"polybot-server/internal/tiers"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// CreateUser inserts a new user
func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.SubscriptionTier == "" {
		user.SubscriptionTier = tiers.TierFree
	}
	if user.SubscriptionStatus == "" {
		user.SubscriptionStatus = StatusActive
	}
	query := `
		INSERT INTO users (id, email, password_hash, name, subscription_tier, subscription_status, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Name,
		user.SubscriptionTier, user.SubscriptionStatus, user.IsAdmin,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

const userColumns = `id, email, password_hash, name, subscription_tier, subscription_status,
	subscription_expires_at, stripe_customer_id, is_admin, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	var name, stripeID *string
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &name,
		&user.SubscriptionTier, &user.SubscriptionStatus, &user.SubscriptionExpiresAt,
		&stripeID, &user.IsAdmin, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if name != nil {
		user.Name = *name
	}
	if stripeID != nil {
		user.StripeCustomerID = *stripeID
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.Pool.QueryRow(ctx, query, id))
}

// GetUserByEmail retrieves a user by email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.Pool.QueryRow(ctx, query, email))
}

// GetUserByStripeCustomer retrieves a user by Stripe customer ID
func (r *Repository) GetUserByStripeCustomer(ctx context.Context, customerID string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE stripe_customer_id = $1`
	return scanUser(r.db.Pool.QueryRow(ctx, query, customerID))
}

// ListUsers returns users with pagination, newest first
func (r *Repository) ListUsers(ctx context.Context, limit, offset int) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUserProfile updates the user's profile fields
func (r *Repository) UpdateUserProfile(ctx context.Context, userID, name string) error {
	query := `UPDATE users SET name = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, query, userID, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUserPassword replaces the user's password hash
func (r *Repository) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, query, userID, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUserTier sets the user's subscription tier and status
func (r *Repository) UpdateUserTier(ctx context.Context, userID string, tier tiers.Tier, status SubscriptionStatus, expiresAt *time.Time) error {
	if !tiers.Valid(tier) {
		return fmt.Errorf("invalid tier: %s", tier)
	}
	query := `
		UPDATE users
		SET subscription_tier = $2, subscription_status = $3, subscription_expires_at = $4, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Pool.Exec(ctx, query, userID, tier, status, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStripeCustomerID records the user's Stripe customer
func (r *Repository) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	query := `UPDATE users SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, query, userID, customerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastLogin records a successful login
func (r *Repository) TouchLastLogin(ctx context.Context, userID string) error {
	query := `UPDATE users SET last_login_at = NOW() WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, userID)
	return err
}

// CountUsers returns the total user count
func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// ============================================================================
// SESSIONS
// ============================================================================

// CreateSession inserts a refresh-token session
func (r *Repository) CreateSession(ctx context.Context, session *UserSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	query := `
		INSERT INTO user_sessions (id, user_id, refresh_token_hash, device_info, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, last_used_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		session.ID, session.UserID, session.RefreshTokenHash,
		session.DeviceInfo, session.IPAddress, session.ExpiresAt,
	).Scan(&session.CreatedAt, &session.LastUsedAt)
}

// GetSessionByTokenHash finds a live session for the given refresh token hash
func (r *Repository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*UserSession, error) {
	query := `
		SELECT id, user_id, refresh_token_hash, device_info, ip_address, expires_at, revoked_at, created_at, last_used_at
		FROM user_sessions
		WHERE refresh_token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`
	session := &UserSession{}
	var device, ip *string
	err := r.db.Pool.QueryRow(ctx, query, tokenHash).Scan(
		&session.ID, &session.UserID, &session.RefreshTokenHash,
		&device, &ip, &session.ExpiresAt, &session.RevokedAt,
		&session.CreatedAt, &session.LastUsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if device != nil {
		session.DeviceInfo = *device
	}
	if ip != nil {
		session.IPAddress = *ip
	}
	return session, nil
}

// TouchSession updates the session's last-used timestamp
func (r *Repository) TouchSession(ctx context.Context, sessionID string) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE user_sessions SET last_used_at = NOW() WHERE id = $1`, sessionID)
	return err
}

// RevokeSession revokes a single session
func (r *Repository) RevokeSession(ctx context.Context, sessionID string) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE user_sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, sessionID)
	return err
}

// RevokeUserSessions revokes all sessions for a user
func (r *Repository) RevokeUserSessions(ctx context.Context, userID string) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE user_sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	return err
}

// PruneExpiredSessions deletes sessions past their expiry
func (r *Repository) PruneExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM user_sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountActiveSessions counts live sessions for a user
func (r *Repository) CountActiveSessions(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_sessions WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > NOW()`,
		userID,
	).Scan(&count)
	return count, err
}
