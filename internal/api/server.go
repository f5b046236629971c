package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"polybot-server/config"
	"polybot-server/internal/alerts"
	"polybot-server/internal/auth"
	"polybot-server/internal/backtest"
	"polybot-server/internal/billing"
	"polybot-server/internal/botproxy"
	"polybot-server/internal/cache"
	"polybot-server/internal/database"
	"polybot-server/internal/events"
	"polybot-server/internal/logging"
	"polybot-server/internal/secrets"
	"polybot-server/internal/telemetry"
	"polybot-server/internal/tiers"
	"polybot-server/internal/venues/alpaca"
	"polybot-server/internal/venues/hyperliquid"
	"polybot-server/internal/venues/ibkr"
	"polybot-server/internal/venues/kalshi"
	"polybot-server/internal/venues/polymarket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RateLimiter provides in-memory sliding-window rate limiting keyed by
// caller, with a per-call limit so different tiers get different budgets.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	window   time.Duration
}

// NewRateLimiter creates a rate limiter with the given window
func NewRateLimiter(window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		window:   window,
	}
}

// Allow checks whether the key may make another request under limit
func (r *RateLimiter) Allow(key string, limit int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// VenueClients bundles the market data clients. Disabled venues are nil.
type VenueClients struct {
	Polymarket  *polymarket.Client
	Kalshi      *kalshi.Client
	Alpaca      *alpaca.Client
	Hyperliquid *hyperliquid.Client
	IBKR        *ibkr.Client
}

// Server is the HTTP API server
type Server struct {
	router         *gin.Engine
	httpServer     *http.Server
	cfg            *config.Config
	repo           *database.Repository
	eventBus       *events.EventBus
	authService    *auth.Service
	billingService *billing.Service
	secretsStore   *secrets.Store
	alertService   *alerts.Service
	botProxy       *botproxy.Proxy
	venues         VenueClients
	cacheService   *cache.CacheService
	simulator      *backtest.Simulator
	rateLimiter    *RateLimiter
	logger         *logging.Logger
}

// Deps carries the services the server depends on. Optional services
// (cache, billing, botProxy) may be nil.
type Deps struct {
	Repo           *database.Repository
	EventBus       *events.EventBus
	AuthService    *auth.Service
	BillingService *billing.Service
	SecretsStore   *secrets.Store
	AlertService   *alerts.Service
	BotProxy       *botproxy.Proxy
	Venues         VenueClients
	CacheService   *cache.CacheService
}

// NewServer creates the API server and wires all routes
func NewServer(cfg *config.Config, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	origins := strings.Split(cfg.ServerConfig.AllowedOrigins, ",")
	if len(origins) == 1 && origins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Device-Info"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:         router,
		cfg:            cfg,
		repo:           deps.Repo,
		eventBus:       deps.EventBus,
		authService:    deps.AuthService,
		billingService: deps.BillingService,
		secretsStore:   deps.SecretsStore,
		alertService:   deps.AlertService,
		botProxy:       deps.BotProxy,
		venues:         deps.Venues,
		cacheService:   deps.CacheService,
		simulator:      backtest.New(),
		rateLimiter:    NewRateLimiter(time.Minute),
		logger:         logging.WithComponent("api"),
	}

	router.Use(server.metricsMiddleware())
	server.setupRoutes()

	if deps.EventBus != nil {
		InitWebSocket(deps.EventBus)
	}

	return server
}

// metricsMiddleware records request counts and latency per route
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := fmt.Sprintf("%d", c.Writer.Status())
		telemetry.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// tierRateLimitMiddleware limits request rates per user according to
// their subscription tier. Unauthenticated requests share an IP bucket
// at the free-tier rate.
func (s *Server) tierRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := auth.GetUserID(c)
		tier := auth.GetUserTier(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
			tier = tiers.TierFree
		}

		limit := tiers.GetConfig(tier).RateLimitPerMin
		if !s.rateLimiter.Allow(key, limit) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "RATE_LIMITED",
				"message": fmt.Sprintf("rate limit of %d requests per minute exceeded", limit),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth routes manage their own public/protected split
	authHandlers := auth.NewHandlers(s.authService)
	authHandlers.RegisterRoutes(s.router.Group("/api/auth"), s.authService.GetJWTManager())

	// TradingView webhook intake, authenticated by shared secret in the
	// payload rather than a JWT
	s.router.POST("/api/webhooks/tradingview", s.handleTradingViewWebhook)

	// Stripe webhook, authenticated by signature
	s.router.POST("/api/billing/webhook", s.handleStripeWebhook)

	// Tier catalog is public so the pricing page can render it
	s.router.GET("/api/tiers", s.handleListTiers)

	// WebSocket endpoint authenticates via token query param
	s.router.GET("/ws", s.handleWebSocket)

	jwtManager := s.authService.GetJWTManager()

	api := s.router.Group("/api")
	api.Use(auth.Middleware(jwtManager))
	api.Use(s.tierRateLimitMiddleware())
	{
		// Trade journal
		api.GET("/trades", s.handleListTrades)
		api.POST("/trades", s.handleCreateTrade)
		api.GET("/trades/open", s.handleListOpenTrades)
		api.GET("/trades/:id", s.handleGetTrade)
		api.POST("/trades/:id/close", s.handleCloseTrade)
		api.DELETE("/trades/:id", s.handleDeleteTrade)

		// Analytics
		api.GET("/analytics/summary", s.handleAnalyticsSummary)

		// Backtesting
		api.GET("/backtest/strategies", s.handleListBacktestStrategies)
		api.POST("/backtest/run", s.handleRunBacktest)

		// Paper-trading simulation lifecycle
		api.POST("/simulation/reset", s.handleResetSimulation)
		api.GET("/simulation/sessions", s.handleListSimulationSessions)

		// Per-user bot configuration
		api.GET("/config", s.handleGetAllConfig)
		api.GET("/config/:key", s.handleGetConfigValue)
		api.PUT("/config/:key", s.handleSetConfigValue)
		api.DELETE("/config/:key", s.handleDeleteConfigValue)

		// Exchange credentials (secrets stored in Vault)
		api.GET("/credentials", s.handleListCredentials)
		api.PUT("/credentials/:exchange", s.handleUpsertCredential)
		api.DELETE("/credentials/:exchange", s.handleDeleteCredential)

		// Billing
		billingGroup := api.Group("/billing")
		{
			billingGroup.POST("/checkout", s.handleCreateCheckout)
			billingGroup.POST("/portal", s.handleCreatePortal)
		}

		// Webhook alert history requires the pro tier and up
		api.GET("/alerts", auth.RequireTier(tiers.TierPro), s.handleListAlerts)

		// Bot supervision
		bot := api.Group("/bot")
		{
			bot.GET("/status", s.handleBotStatus)
			bot.POST("/command", auth.RequireAdmin(), s.handleBotCommand)
			bot.GET("/circuit-breaker", s.handleBotBreakerStatus)
			bot.POST("/circuit-breaker/reset", auth.RequireAdmin(), s.handleBotBreakerReset)
		}

		// Market data, read-only passthrough per venue
		markets := api.Group("/markets")
		{
			markets.GET("/polymarket", s.handlePolymarketMarkets)
			markets.GET("/polymarket/events", s.handlePolymarketEvents)
			markets.GET("/polymarket/:id", s.handlePolymarketMarket)
			markets.GET("/kalshi", s.handleKalshiMarkets)
			markets.GET("/kalshi/balance", s.handleKalshiBalance)
			markets.GET("/kalshi/positions", s.handleKalshiPositions)
			markets.GET("/kalshi/:ticker", s.handleKalshiMarket)
			markets.GET("/alpaca/:symbol/quote", s.handleAlpacaQuote)
			markets.GET("/alpaca/:symbol/bars", s.handleAlpacaBars)
			markets.GET("/hyperliquid/mids", s.handleHyperliquidMids)
			markets.GET("/hyperliquid/state", s.handleHyperliquidState)
			markets.GET("/ibkr/status", s.handleIBKRStatus)
			markets.GET("/ibkr/accounts", s.handleIBKRAccounts)
			markets.GET("/ibkr/positions", s.handleIBKRPositions)
		}

		// Admin
		admin := api.Group("/admin")
		admin.Use(auth.RequireAdmin())
		{
			admin.GET("/users", s.handleAdminListUsers)
			admin.PUT("/users/:id/tier", s.handleAdminSetUserTier)
			admin.POST("/users/:id/logout", s.handleAdminLogoutUser)
			admin.GET("/audit", s.handleAdminAuditLog)
			admin.GET("/stats", s.handleAdminStats)
			admin.POST("/sessions/prune", s.handleAdminPruneSessions)
		}
	}
}

// Start starts the HTTP server and blocks until it exits
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.ServerConfig.Host, s.cfg.ServerConfig.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ServerConfig.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.ServerConfig.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", addr)

	var err error
	if s.cfg.ServerConfig.TLSEnabled {
		err = s.httpServer.ListenAndServeTLS(s.cfg.ServerConfig.TLSCertFile, s.cfg.ServerConfig.TLSKeyFile)
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Router exposes the gin engine for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// handleHealth reports server, database, redis, and bot health
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	healthy := true
	checks := gin.H{}

	if s.repo != nil {
		if err := s.repo.HealthCheck(ctx); err != nil {
			checks["database"] = "unhealthy"
			healthy = false
		} else {
			checks["database"] = "healthy"
		}
	}

	if s.cacheService != nil {
		if s.cacheService.IsHealthy() {
			checks["redis"] = "healthy"
			telemetry.CacheHealthy.Set(1)
		} else {
			checks["redis"] = "degraded"
			telemetry.CacheHealthy.Set(0)
		}
	}

	if s.botProxy != nil {
		checks["bot"] = s.botProxy.GetStatus(ctx).State
	}

	status := http.StatusOK
	statusText := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		statusText = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status": statusText,
		"checks": checks,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// errorResponse sends a uniform error body
func errorResponse(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, gin.H{
		"error":   code,
		"message": message,
	})
}

// successResponse sends a uniform success body
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// requireUserID pulls the authenticated user ID or writes a 401
func requireUserID(c *gin.Context) (string, bool) {
	userID := auth.GetUserID(c)
	if userID == "" {
		errorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return "", false
	}
	return userID, true
}

// audit records a sensitive operation, failures are logged not fatal
func (s *Server) audit(c *gin.Context, action, target string, detail map[string]interface{}) {
	if s.repo == nil {
		return
	}
	entry := &database.AuditEntry{
		UserID:    auth.GetUserID(c),
		Action:    action,
		Target:    target,
		Detail:    detail,
		IPAddress: c.ClientIP(),
	}
	if err := s.repo.RecordAudit(c.Request.Context(), entry); err != nil {
		s.logger.Warn("Failed to record audit entry", "action", action, "error", err.Error())
	}
}
