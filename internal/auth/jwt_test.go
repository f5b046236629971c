package auth

import (
	"testing"
	"time"
)

func testClaims() UserClaims {
	return UserClaims{
		UserID:           "user-123",
		Email:            "trader@example.com",
		SubscriptionTier: "pro",
		IsAdmin:          false,
	}
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	manager := NewJWTManager("test-secret-key", 15*time.Minute, 7*24*time.Hour)

	token, err := manager.GenerateAccessToken(testClaims())
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := manager.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("UserID = %q, want user-123", claims.UserID)
	}
	if claims.Email != "trader@example.com" {
		t.Errorf("Email = %q, want trader@example.com", claims.Email)
	}
	if claims.SubscriptionTier != "pro" {
		t.Errorf("SubscriptionTier = %q, want pro", claims.SubscriptionTier)
	}
	if claims.IsAdmin {
		t.Error("IsAdmin = true, want false")
	}
}

func TestValidateAccessTokenWrongSecret(t *testing.T) {
	manager := NewJWTManager("secret-a", 15*time.Minute, 7*24*time.Hour)
	other := NewJWTManager("secret-b", 15*time.Minute, 7*24*time.Hour)

	token, err := manager.GenerateAccessToken(testClaims())
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := other.ValidateAccessToken(token); err == nil {
		t.Fatal("expected validation to fail with wrong secret")
	}
}

func TestValidateAccessTokenExpired(t *testing.T) {
	manager := NewJWTManager("test-secret-key", -1*time.Minute, 7*24*time.Hour)

	token, err := manager.GenerateAccessToken(testClaims())
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	_, err = manager.ValidateAccessToken(token)
	if err == nil {
		t.Fatal("expected expired token to fail validation")
	}
}

func TestValidateAccessTokenGarbage(t *testing.T) {
	manager := NewJWTManager("test-secret-key", 15*time.Minute, 7*24*time.Hour)

	if _, err := manager.ValidateAccessToken("not.a.token"); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGenerateRefreshTokenUnique(t *testing.T) {
	manager := NewJWTManager("test-secret-key", 15*time.Minute, 7*24*time.Hour)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		token, err := manager.GenerateRefreshToken()
		if err != nil {
			t.Fatalf("GenerateRefreshToken failed: %v", err)
		}
		if seen[token] {
			t.Fatal("refresh tokens must be unique")
		}
		seen[token] = true
	}
}

func TestGenerateTokenPair(t *testing.T) {
	manager := NewJWTManager("test-secret-key", 15*time.Minute, 7*24*time.Hour)

	pair, err := manager.GenerateTokenPair(testClaims())
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be set")
	}
	if pair.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want Bearer", pair.TokenType)
	}
	if pair.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Errorf("ExpiresIn = %d, want %d", pair.ExpiresIn, int64((15 * time.Minute).Seconds()))
	}
}

func TestPurposeTokenRoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret-key", 15*time.Minute, 7*24*time.Hour)

	token, err := manager.GeneratePurposeToken("user-123", "password_reset", time.Hour)
	if err != nil {
		t.Fatalf("GeneratePurposeToken failed: %v", err)
	}

	userID, err := manager.ValidatePurposeToken(token, "password_reset")
	if err != nil {
		t.Fatalf("ValidatePurposeToken failed: %v", err)
	}
	if userID != "user-123" {
		t.Errorf("userID = %q, want user-123", userID)
	}

	// A token minted for one purpose must not validate for another
	if _, err := manager.ValidatePurposeToken(token, "email_change"); err == nil {
		t.Fatal("expected purpose mismatch to fail validation")
	}
}
