package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"polybot-server/internal/database"
	"polybot-server/internal/logging"
	"polybot-server/internal/tiers"
)

// SeedAdminUser ensures an admin user exists with the configured
// credentials. Skipped entirely when no admin email is configured.
// Existing admins get their password and flags reconciled, so rotating
// the configured password takes effect on restart.
func SeedAdminUser(ctx context.Context, db *database.DB, cfg Config) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	if cfg.AdminPassword == "" {
		return fmt.Errorf("admin email configured without a password")
	}

	repo := database.NewRepository(db)
	logger := logging.WithComponent("auth")

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), DefaultBcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	user, err := repo.GetUserByEmail(ctx, cfg.AdminEmail)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("failed to check for admin user: %w", err)
		}

		adminUser := &database.User{
			Email:            cfg.AdminEmail,
			PasswordHash:     string(hashedPassword),
			Name:             "Administrator",
			SubscriptionTier: tiers.TierElite,
			IsAdmin:          true,
		}
		if err := repo.CreateUser(ctx, adminUser); err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		logger.Info("admin user created", "email", cfg.AdminEmail, "user_id", adminUser.ID)
		return nil
	}

	// Reconcile password
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(cfg.AdminPassword)) != nil {
		if err := repo.UpdateUserPassword(ctx, user.ID, string(hashedPassword)); err != nil {
			return fmt.Errorf("failed to update admin password: %w", err)
		}
		logger.Info("admin password updated", "email", cfg.AdminEmail)
	}

	// Reconcile tier
	if user.SubscriptionTier != tiers.TierElite {
		if err := repo.UpdateUserTier(ctx, user.ID, tiers.TierElite, database.StatusActive, nil); err != nil {
			return fmt.Errorf("failed to update admin tier: %w", err)
		}
		logger.Info("admin tier updated", "email", cfg.AdminEmail)
	}

	return nil
}
