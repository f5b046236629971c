package ibkr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetAuthStatus(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/api/iserver/auth/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(AuthStatus{Authenticated: true, Connected: true})
	}))
	defer server.Close()

	// The test server's certificate is self-signed, same as the real
	// gateway, so skipVerify exercises the production path.
	client := NewClient(true, WithGatewayURL(server.URL))

	status, err := client.GetAuthStatus(context.Background())
	if err != nil {
		t.Fatalf("GetAuthStatus failed: %v", err)
	}
	if !status.Authenticated || !status.Connected {
		t.Errorf("status = %+v, want authenticated and connected", status)
	}
}

func TestGetPositions(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/api/portfolio/DU12345/positions/0" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		positions := []Position{
			{ConID: 1, ContractDesc: "AAPL", Position: 100, MktPrice: 187.5, UnrealizedPnl: 250},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(positions)
	}))
	defer server.Close()

	client := NewClient(true, WithGatewayURL(server.URL))

	positions, err := client.GetPositions(context.Background(), "DU12345")
	if err != nil {
		t.Fatalf("GetPositions failed: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("Expected 1 position, got %d", len(positions))
	}
	if positions[0].ContractDesc != "AAPL" {
		t.Errorf("ContractDesc = %q, want AAPL", positions[0].ContractDesc)
	}
}

func TestTLSVerifyFailsWithoutSkip(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(AuthStatus{})
	}))
	defer server.Close()

	client := NewClient(false, WithGatewayURL(server.URL))

	if _, err := client.GetAuthStatus(context.Background()); err == nil {
		t.Fatal("expected TLS verification failure against self-signed cert")
	}
}
