package hyperliquid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetAllMids(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["type"] != "allMids" {
			t.Errorf("type = %v, want allMids", body["type"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"BTC": "97123.5", "ETH": "3456.7"})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	mids, err := client.GetAllMids(context.Background())
	if err != nil {
		t.Fatalf("GetAllMids failed: %v", err)
	}
	if mids["BTC"] != "97123.5" {
		t.Errorf("BTC mid = %q, want 97123.5", mids["BTC"])
	}
}

func TestGetUserState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["type"] != "clearinghouseState" {
			t.Errorf("type = %v, want clearinghouseState", body["type"])
		}
		if body["user"] != "0xabc" {
			t.Errorf("user = %v, want 0xabc", body["user"])
		}

		state := UserState{}
		state.MarginSummary.AccountValue = "12345.67"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(state)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	state, err := client.GetUserState(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("GetUserState failed: %v", err)
	}
	if state.MarginSummary.AccountValue != "12345.67" {
		t.Errorf("AccountValue = %q, want 12345.67", state.MarginSummary.AccountValue)
	}
}

func TestInfoErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	if _, err := client.GetAllMids(context.Background()); err == nil {
		t.Fatal("expected error on 429 response")
	}
}
