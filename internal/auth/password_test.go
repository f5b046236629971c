package auth

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	// Low cost keeps the test fast
	pm := NewPasswordManager(4, 8)

	hash, err := pm.HashPassword("Str0ng!pass")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "Str0ng!pass" {
		t.Fatal("hash must not equal the plaintext")
	}

	if !pm.VerifyPassword("Str0ng!pass", hash) {
		t.Error("expected correct password to verify")
	}
	if pm.VerifyPassword("wrong-password", hash) {
		t.Error("expected wrong password to fail verification")
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	pm := NewPasswordManager(4, 8)

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"strong mixed", "Str0ng!pass", false},
		{"upper lower digit", "Passw0rdX", false},
		{"too short", "Ab1!", true},
		{"only lowercase", "alllowercaseletters", true},
		{"two classes only", "passw0rdpassw0rd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pm.ValidatePasswordStrength(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePasswordStrength(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestHashRefreshTokenDeterministic(t *testing.T) {
	a := HashRefreshToken("some-refresh-token")
	b := HashRefreshToken("some-refresh-token")
	c := HashRefreshToken("another-token")

	if a != b {
		t.Error("same token must hash to the same value")
	}
	if a == c {
		t.Error("different tokens must hash to different values")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}
