package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"polybot-server/config"
	"polybot-server/internal/alerts"
	"polybot-server/internal/auth"

	"github.com/gin-gonic/gin"
)

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.ServerConfig.AllowedOrigins = "*"

	if deps.AuthService == nil {
		authCfg := auth.DefaultConfig()
		authCfg.JWTSecret = "test-jwt-secret"
		deps.AuthService = auth.NewService(nil, authCfg)
	}

	return NewServer(cfg, deps)
}

func accessToken(t *testing.T, s *Server, tier string, admin bool) string {
	t.Helper()
	token, err := s.authService.GetJWTManager().GenerateAccessToken(auth.UserClaims{
		UserID:           "user-1",
		Email:            "user@example.com",
		SubscriptionTier: tier,
		IsAdmin:          admin,
	})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	return token
}

func doRequest(s *Server, method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, Deps{})

	w := doRequest(s, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("expected health body, got %s", w.Body.String())
	}
}

func TestTiersEndpointIsPublic(t *testing.T) {
	s := newTestServer(t, Deps{})

	w := doRequest(s, http.MethodGet, "/api/tiers", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Tiers      map[string]json.RawMessage `json:"tiers"`
		Strategies map[string]string          `json:"strategies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, tier := range []string{"free", "pro", "elite"} {
		if _, ok := body.Tiers[tier]; !ok {
			t.Errorf("missing tier %q in catalog", tier)
		}
	}
	if len(body.Strategies) == 0 {
		t.Error("expected strategy flags in catalog")
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	s := newTestServer(t, Deps{})

	w := doRequest(s, http.MethodGet, "/api/backtest/strategies", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w = doRequest(s, http.MethodGet, "/api/backtest/strategies", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", w.Code)
	}
}

func TestListBacktestStrategies(t *testing.T) {
	s := newTestServer(t, Deps{})
	token := accessToken(t, s, "free", false)

	w := doRequest(s, http.MethodGet, "/api/backtest/strategies", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "mean_reversion") {
		t.Errorf("expected strategy list, got %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "randomized draws") {
		t.Error("expected synthetic disclosure in response")
	}
}

func TestRunBacktest(t *testing.T) {
	s := newTestServer(t, Deps{})
	token := accessToken(t, s, "free", false)

	body, _ := json.Marshal(map[string]interface{}{
		"strategy":         "mean_reversion",
		"days":             10,
		"starting_balance": 5000,
	})
	w := doRequest(s, http.MethodPost, "/api/backtest/run", token, body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result struct {
		Strategy string `json:"strategy"`
		Days     int    `json:"days"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Strategy != "mean_reversion" || result.Days != 10 {
		t.Errorf("unexpected result echo: %+v", result)
	}
}

func TestRunBacktestTierWindowCap(t *testing.T) {
	s := newTestServer(t, Deps{})

	cases := []struct {
		tier string
		days int
		want int
	}{
		{"free", 31, http.StatusForbidden},
		{"free", 30, http.StatusOK},
		{"pro", 180, http.StatusOK},
		{"pro", 181, http.StatusForbidden},
		{"elite", 365, http.StatusOK},
	}
	for _, tc := range cases {
		token := accessToken(t, s, tc.tier, false)
		body, _ := json.Marshal(map[string]interface{}{
			"strategy":         "grid_trading",
			"days":             tc.days,
			"starting_balance": 10000,
		})
		w := doRequest(s, http.MethodPost, "/api/backtest/run", token, body)
		if w.Code != tc.want {
			t.Errorf("tier=%s days=%d: expected %d, got %d", tc.tier, tc.days, tc.want, w.Code)
		}
	}
}

func TestRunBacktestUnknownStrategy(t *testing.T) {
	s := newTestServer(t, Deps{})
	token := accessToken(t, s, "elite", false)

	body, _ := json.Marshal(map[string]interface{}{
		"strategy":         "does_not_exist",
		"days":             10,
		"starting_balance": 1000,
	})
	w := doRequest(s, http.MethodPost, "/api/backtest/run", token, body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestTradingViewWebhookRejectsBadSecret(t *testing.T) {
	alertCfg := config.WebhookConfig{SharedSecret: "correct-secret"}
	s := newTestServer(t, Deps{
		AlertService: alerts.NewService(alertCfg, nil, nil),
	})

	body := []byte(`{"secret":"wrong","symbol":"BTCUSD","action":"buy"}`)
	w := doRequest(s, http.MethodPost, "/api/webhooks/tradingview", "", body)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad secret, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTradingViewWebhookRejectsMalformedPayload(t *testing.T) {
	alertCfg := config.WebhookConfig{SharedSecret: "correct-secret"}
	s := newTestServer(t, Deps{
		AlertService: alerts.NewService(alertCfg, nil, nil),
	})

	w := doRequest(s, http.MethodPost, "/api/webhooks/tradingview", "", []byte("{not json"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed payload, got %d", w.Code)
	}
}

func TestAdminRoutesRejectNonAdmin(t *testing.T) {
	s := newTestServer(t, Deps{})
	token := accessToken(t, s, "elite", false)

	w := doRequest(s, http.MethodGet, "/api/admin/users", token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", w.Code)
	}
}

func TestAlertsRouteRequiresProTier(t *testing.T) {
	alertCfg := config.WebhookConfig{SharedSecret: "s"}
	s := newTestServer(t, Deps{
		AlertService: alerts.NewService(alertCfg, nil, nil),
	})

	token := accessToken(t, s, "free", false)
	w := doRequest(s, http.MethodGet, "/api/alerts", token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for free tier, got %d", w.Code)
	}
}

func TestVenueRoutesReturn503WhenDisabled(t *testing.T) {
	s := newTestServer(t, Deps{})
	token := accessToken(t, s, "pro", false)

	paths := []string{
		"/api/markets/polymarket",
		"/api/markets/kalshi",
		"/api/markets/alpaca/SPY/quote",
		"/api/markets/hyperliquid/mids",
		"/api/markets/ibkr/status",
	}
	for _, path := range paths {
		w := doRequest(s, http.MethodGet, path, token, nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503 when venue disabled, got %d", path, w.Code)
		}
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter(50 * time.Millisecond)

	for i := 0; i < 3; i++ {
		if !rl.Allow("k", 3) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("k", 3) {
		t.Fatal("4th request inside window should be rejected")
	}
	if !rl.Allow("other", 3) {
		t.Fatal("different key should have its own budget")
	}

	time.Sleep(60 * time.Millisecond)
	if !rl.Allow("k", 3) {
		t.Fatal("request after window expiry should be allowed")
	}
}

func TestTierRateLimitEnforced(t *testing.T) {
	s := newTestServer(t, Deps{})
	token := accessToken(t, s, "free", false)

	// Free tier allows 30 requests per minute
	limited := false
	for i := 0; i < 31; i++ {
		w := doRequest(s, http.MethodGet, "/api/backtest/strategies", token, nil)
		if w.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("expected a 429 after exceeding the free tier budget")
	}
}
