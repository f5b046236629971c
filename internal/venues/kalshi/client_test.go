package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestGetMarkets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("Expected path /markets, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("event_ticker") != "KXHIGHLAX" {
			t.Errorf("Expected event_ticker=KXHIGHLAX, got %s", r.URL.Query().Get("event_ticker"))
		}

		resp := struct {
			Markets []Market `json:"markets"`
		}{
			Markets: []Market{
				{Ticker: "KXHIGHLAX-B1", YesBid: 42, YesAsk: 45, Status: "active"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient("", nil, WithBaseURL(server.URL))

	markets, err := client.GetMarkets(context.Background(), "KXHIGHLAX", 0)
	if err != nil {
		t.Fatalf("GetMarkets failed: %v", err)
	}
	if len(markets) != 1 {
		t.Fatalf("Expected 1 market, got %d", len(markets))
	}
	if markets[0].YesBid != 42 {
		t.Errorf("YesBid = %d, want 42", markets[0].YesBid)
	}
}

func TestGetBalanceRequiresCredentials(t *testing.T) {
	client := NewClient("", nil)
	if _, err := client.GetBalance(context.Background()); err == nil {
		t.Fatal("expected error without credentials")
	}
}

func TestSignedRequestHeaders(t *testing.T) {
	key := testKey(t)

	var gotKey, gotTimestamp, gotSignature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("KALSHI-ACCESS-KEY")
		gotTimestamp = r.Header.Get("KALSHI-ACCESS-TIMESTAMP")
		gotSignature = r.Header.Get("KALSHI-ACCESS-SIGNATURE")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Balance{Balance: 5000})
	}))
	defer server.Close()

	client := NewClient("key-id-1", key, WithBaseURL(server.URL))

	balance, err := client.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance.Balance != 5000 {
		t.Errorf("Balance = %d, want 5000", balance.Balance)
	}

	if gotKey != "key-id-1" {
		t.Errorf("access key header = %q, want key-id-1", gotKey)
	}
	if gotTimestamp == "" || gotSignature == "" {
		t.Fatal("expected timestamp and signature headers")
	}

	// The signature must verify against the public key over
	// timestamp + method + path.
	sig, err := base64.StdEncoding.DecodeString(gotSignature)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	message := gotTimestamp + "GET" + "/portfolio/balance"
	hash := sha256.Sum256([]byte(message))
	err = rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, hash[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		t.Errorf("signature does not verify: %v", err)
	}
}

func TestParsePrivateKeyPKCS8(t *testing.T) {
	key := testKey(t)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	parsed, err := ParsePrivateKey(pemData)
	if err != nil {
		t.Fatalf("ParsePrivateKey failed: %v", err)
	}
	if parsed.N.Cmp(key.N) != 0 {
		t.Error("parsed key does not match original")
	}
}

func TestParsePrivateKeyPKCS1(t *testing.T) {
	key := testKey(t)
	pemData := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	if _, err := ParsePrivateKey(pemData); err != nil {
		t.Fatalf("ParsePrivateKey failed: %v", err)
	}
}

func TestParsePrivateKeyGarbage(t *testing.T) {
	if _, err := ParsePrivateKey([]byte("not a pem")); err == nil {
		t.Fatal("expected error for invalid PEM")
	}
}
