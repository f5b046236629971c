package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListMarkets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("Expected path /markets, got %s", r.URL.Path)
		}

		markets := []Market{
			{ID: "1", Question: "Will it rain tomorrow?", Active: true, Slug: "rain-tomorrow"},
			{ID: "2", Question: "Will BTC close above 100k?", Active: true, Slug: "btc-100k"},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(markets)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	markets, err := client.ListMarkets(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListMarkets failed: %v", err)
	}

	if len(markets) != 2 {
		t.Errorf("Expected 2 markets, got %d", len(markets))
	}
	if markets[0].Question != "Will it rain tomorrow?" {
		t.Errorf("Wrong question: got %s", markets[0].Question)
	}
}

func TestListMarketsWithFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("active") != "true" {
			t.Errorf("Expected active=true, got %s", query.Get("active"))
		}
		if query.Get("closed") != "false" {
			t.Errorf("Expected closed=false, got %s", query.Get("closed"))
		}
		if query.Get("limit") != "10" {
			t.Errorf("Expected limit=10, got %s", query.Get("limit"))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]Market{})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	active := true
	closed := false
	_, err := client.ListMarkets(context.Background(), &MarketsFilter{
		Active: &active,
		Closed: &closed,
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("ListMarkets failed: %v", err)
	}
}

func TestGetMarketBySlugNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]Market{})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	if _, err := client.GetMarketBySlug(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown slug")
	}
}

func TestListTradeableMarketsPaginates(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		markets := make([]Market, 0, 100)
		// First page is full, second is partial
		count := 100
		if calls > 1 {
			count = 7
		}
		for i := 0; i < count; i++ {
			markets = append(markets, Market{ID: "m", Active: true})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(markets)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(1000, 1000))

	markets, err := client.ListTradeableMarkets(context.Background())
	if err != nil {
		t.Fatalf("ListTradeableMarkets failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 pages, got %d", calls)
	}
	if len(markets) != 107 {
		t.Errorf("Expected 107 markets, got %d", len(markets))
	}
}

func TestGetErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	if _, err := client.ListMarkets(context.Background(), nil); err == nil {
		t.Fatal("expected error on 500 response")
	}
}
