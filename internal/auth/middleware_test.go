package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"polybot-server/internal/tiers"
)

func newTestRouter(manager *JWTManager, minTier tiers.Tier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/protected")
	group.Use(Middleware(manager))
	if minTier != "" {
		group.Use(RequireTier(minTier))
	}
	group.GET("/resource", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c)})
	})
	return router
}

func TestMiddlewareMissingHeader(t *testing.T) {
	manager := NewJWTManager("test-secret", 15*time.Minute, time.Hour)
	router := newTestRouter(manager, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected/resource", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestMiddlewareBadFormat(t *testing.T) {
	manager := NewJWTManager("test-secret", 15*time.Minute, time.Hour)
	router := newTestRouter(manager, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected/resource", nil)
	req.Header.Set("Authorization", "Token abc123")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestMiddlewareValidToken(t *testing.T) {
	manager := NewJWTManager("test-secret", 15*time.Minute, time.Hour)
	router := newTestRouter(manager, "")

	token, err := manager.GenerateAccessToken(testClaims())
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected/resource", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestRequireTier(t *testing.T) {
	manager := NewJWTManager("test-secret", 15*time.Minute, time.Hour)

	tests := []struct {
		name     string
		userTier string
		minTier  tiers.Tier
		want     int
	}{
		{"free blocked from elite", "free", tiers.TierElite, http.StatusForbidden},
		{"free blocked from pro", "free", tiers.TierPro, http.StatusForbidden},
		{"pro allowed for pro", "pro", tiers.TierPro, http.StatusOK},
		{"elite allowed for pro", "elite", tiers.TierPro, http.StatusOK},
		{"unknown tier treated as free", "platinum", tiers.TierPro, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(manager, tt.minTier)

			claims := testClaims()
			claims.SubscriptionTier = tt.userTier
			token, err := manager.GenerateAccessToken(claims)
			if err != nil {
				t.Fatalf("GenerateAccessToken failed: %v", err)
			}

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/protected/resource", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	manager := NewJWTManager("test-secret", 15*time.Minute, time.Hour)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/admin")
	group.Use(Middleware(manager), RequireAdmin())
	group.GET("/users", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// Non-admin is rejected
	token, _ := manager.GenerateAccessToken(testClaims())
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("non-admin status = %d, want %d", w.Code, http.StatusForbidden)
	}

	// Admin passes
	claims := testClaims()
	claims.IsAdmin = true
	adminToken, _ := manager.GenerateAccessToken(claims)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("admin status = %d, want %d", w.Code, http.StatusOK)
	}
}
