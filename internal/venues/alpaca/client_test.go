package alpaca

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetLatestQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/stocks/AAPL/quotes/latest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("APCA-API-KEY-ID") != "key-id" {
			t.Errorf("missing key header, got %q", r.Header.Get("APCA-API-KEY-ID"))
		}
		if r.Header.Get("APCA-API-SECRET-KEY") != "secret" {
			t.Errorf("missing secret header")
		}

		resp := struct {
			Quote Quote `json:"quote"`
		}{
			Quote: Quote{AskPrice: 187.5, BidPrice: 187.4, AskSize: 2, BidSize: 3},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient("key-id", "secret", WithBaseURL(server.URL))

	quote, err := client.GetLatestQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetLatestQuote failed: %v", err)
	}
	if quote.AskPrice != 187.5 {
		t.Errorf("AskPrice = %v, want 187.5", quote.AskPrice)
	}
}

func TestGetBars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/stocks/SPY/bars" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("timeframe") != "1Day" {
			t.Errorf("timeframe = %q, want 1Day", r.URL.Query().Get("timeframe"))
		}
		if r.URL.Query().Get("limit") != "30" {
			t.Errorf("limit = %q, want 30", r.URL.Query().Get("limit"))
		}

		resp := struct {
			Bars []Bar `json:"bars"`
		}{
			Bars: []Bar{
				{Open: 500, High: 505, Low: 498, Close: 503, Volume: 1000},
				{Open: 503, High: 510, Low: 502, Close: 509, Volume: 1200},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient("key-id", "secret", WithBaseURL(server.URL))

	bars, err := client.GetBars(context.Background(), "SPY", 30)
	if err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("Expected 2 bars, got %d", len(bars))
	}
	if bars[1].Close != 509 {
		t.Errorf("Close = %v, want 509", bars[1].Close)
	}
}

func TestUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"forbidden"}`, http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient("bad", "creds", WithBaseURL(server.URL))

	if _, err := client.GetLatestQuote(context.Background(), "AAPL"); err == nil {
		t.Fatal("expected error on 403 response")
	}
}
