package botproxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"polybot-server/config"
	"polybot-server/internal/events"
)

func testConfig(baseURL string) config.BotConfig {
	return config.BotConfig{
		BaseURL:       baseURL,
		APIKey:        "test-key",
		PollInterval:  time.Hour, // tests drive poll() directly
		HealthTimeout: 2 * time.Second,
	}
}

func TestPollUpdatesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Errorf("missing api key header, got %q", r.Header.Get("X-API-Key"))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"state":          "running",
			"version":        "1.4.2",
			"uptime_seconds": 3600.0,
			"open_positions": 3,
			"active_venues":  []string{"polymarket", "kalshi"},
		})
	}))
	defer server.Close()

	proxy := NewProxy(testConfig(server.URL), nil, nil)
	proxy.poll()

	status := proxy.GetStatus(context.Background())
	if status.State != StateRunning {
		t.Errorf("State = %q, want running", status.State)
	}
	if !status.Healthy {
		t.Error("expected healthy status")
	}
	if status.OpenPositions != 3 {
		t.Errorf("OpenPositions = %d, want 3", status.OpenPositions)
	}
	if status.Version != "1.4.2" {
		t.Errorf("Version = %q, want 1.4.2", status.Version)
	}
	if status.CheckedAt.IsZero() {
		t.Error("expected CheckedAt to be set")
	}
}

func TestPollMarksUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	server.Close() // connection refused

	proxy := NewProxy(testConfig(server.URL), nil, nil)
	proxy.poll()

	status := proxy.GetStatus(context.Background())
	if status.State != StateUnreachable {
		t.Errorf("State = %q, want unreachable", status.State)
	}
	if status.Healthy {
		t.Error("expected unhealthy status")
	}
	if status.Detail == "" {
		t.Error("expected failure detail")
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	server := httptest.NewServer(nil)
	server.Close()

	proxy := NewProxy(testConfig(server.URL), nil, nil)

	for i := 0; i < 6; i++ {
		proxy.poll()
	}

	stats := proxy.BreakerStats()
	if stats.State != "open" {
		t.Errorf("breaker state = %s, want open", stats.State)
	}

	// Commands are rejected fast while open
	if err := proxy.Command(context.Background(), CommandStart); err == nil {
		t.Fatal("expected command rejection while breaker open")
	}

	proxy.ResetBreaker()
	if stats := proxy.BreakerStats(); stats.State != "closed" {
		t.Errorf("breaker state after reset = %s, want closed", stats.State)
	}
}

func TestStatusChangePublishesEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"state": "running"})
	}))
	defer server.Close()

	bus := events.NewEventBus()
	received := make(chan events.Event, 1)
	bus.Subscribe(events.EventBotStatusUpdate, func(e events.Event) {
		received <- e
	})

	proxy := NewProxy(testConfig(server.URL), bus, nil)
	proxy.poll() // unknown -> running

	select {
	case e := <-received:
		if e.Data["status"] != StateRunning {
			t.Errorf("status = %v, want running", e.Data["status"])
		}
	case <-time.After(time.Second):
		t.Fatal("no bot status event published")
	}

	// Same state again must not publish
	proxy.poll()
	select {
	case <-received:
		t.Fatal("unexpected event for unchanged state")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCommandValidation(t *testing.T) {
	var gotAction string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/control" {
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			gotAction = body["action"]
			w.WriteHeader(http.StatusOK)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"state": "running"})
	}))
	defer server.Close()

	proxy := NewProxy(testConfig(server.URL), nil, nil)

	if err := proxy.Command(context.Background(), "explode"); err == nil {
		t.Fatal("expected error for unknown command")
	}

	if err := proxy.Command(context.Background(), CommandRestart); err != nil {
		t.Fatalf("Command failed: %v", err)
	}
	if gotAction != "restart" {
		t.Errorf("action = %q, want restart", gotAction)
	}
}
