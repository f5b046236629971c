package secrets

import (
	"context"
	"testing"
)

func TestMockStoreRoundTrip(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	cred := Credential{
		Exchange:  "kalshi",
		APIKey:    "access-key-id-1234",
		APISecret: "secret",
	}

	path, err := store.Put(ctx, "user-1", cred)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if path == "" {
		t.Fatal("expected a vault path")
	}

	got, err := store.Get(ctx, "user-1", "kalshi")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.APIKey != cred.APIKey {
		t.Errorf("APIKey = %q, want %q", got.APIKey, cred.APIKey)
	}

	// Another user must not see it
	if _, err := store.Get(ctx, "user-2", "kalshi"); err == nil {
		t.Fatal("expected miss for a different user")
	}
}

func TestMockStoreDelete(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	if _, err := store.Put(ctx, "user-1", Credential{Exchange: "alpaca", APIKey: "key"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "user-1", "alpaca"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "user-1", "alpaca"); err == nil {
		t.Fatal("expected miss after delete")
	}
}

func TestInvalidateUser(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	store.Put(ctx, "user-1", Credential{Exchange: "polymarket", PrivateKey: "0xabc"})
	store.Put(ctx, "user-2", Credential{Exchange: "polymarket", PrivateKey: "0xdef"})

	store.InvalidateUser("user-1")

	if _, err := store.Get(ctx, "user-1", "polymarket"); err == nil {
		t.Error("expected user-1 cache to be cleared")
	}
	if _, err := store.Get(ctx, "user-2", "polymarket"); err != nil {
		t.Error("user-2 cache should survive")
	}
}

func TestLastFour(t *testing.T) {
	if got := (Credential{APIKey: "abcdef1234"}).LastFour(); got != "1234" {
		t.Errorf("LastFour = %q, want 1234", got)
	}
	if got := (Credential{APIKey: "ab"}).LastFour(); got != "ab" {
		t.Errorf("LastFour short = %q, want ab", got)
	}
}

func TestHealthDisabled(t *testing.T) {
	store := NewMockStore()
	if err := store.Health(context.Background()); err != nil {
		t.Errorf("disabled store health should be nil, got %v", err)
	}
}
