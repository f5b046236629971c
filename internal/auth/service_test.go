package auth

import (
	"testing"
	"time"
)

func TestNewServiceDefaultsTokenDurations(t *testing.T) {
	// Mirror how main wires the service: only the secret is set
	s := NewService(nil, Config{JWTSecret: "test-secret-key"})

	if s.config.AccessTokenDuration != 15*time.Minute {
		t.Errorf("AccessTokenDuration = %v, want 15m", s.config.AccessTokenDuration)
	}
	if s.config.RefreshTokenDuration != 7*24*time.Hour {
		t.Errorf("RefreshTokenDuration = %v, want 168h", s.config.RefreshTokenDuration)
	}
	if s.config.PasswordResetDuration != 30*time.Minute {
		t.Errorf("PasswordResetDuration = %v, want 30m", s.config.PasswordResetDuration)
	}
}

func TestPasswordResetTokenUsableWithDefaultConfig(t *testing.T) {
	s := NewService(nil, Config{JWTSecret: "test-secret-key"})

	// A freshly minted reset token must validate: a zero-value lifetime
	// would issue tokens that are already expired.
	token, err := s.jwtManager.GeneratePurposeToken("user-123", "password_reset", s.config.PasswordResetDuration)
	if err != nil {
		t.Fatalf("GeneratePurposeToken failed: %v", err)
	}

	userID, err := s.jwtManager.ValidatePurposeToken(token, "password_reset")
	if err != nil {
		t.Fatalf("ValidatePurposeToken failed: %v", err)
	}
	if userID != "user-123" {
		t.Errorf("userID = %q, want user-123", userID)
	}
}
