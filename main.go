package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"polybot-server/config"
	"polybot-server/internal/alerts"
	"polybot-server/internal/api"
	"polybot-server/internal/auth"
	"polybot-server/internal/billing"
	"polybot-server/internal/botproxy"
	"polybot-server/internal/cache"
	"polybot-server/internal/database"
	"polybot-server/internal/events"
	"polybot-server/internal/logging"
	"polybot-server/internal/secrets"
	"polybot-server/internal/venues/alpaca"
	"polybot-server/internal/venues/hyperliquid"
	"polybot-server/internal/venues/ibkr"
	"polybot-server/internal/venues/kalshi"
	"polybot-server/internal/venues/polymarket"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := database.NewDB(database.Config{
		ConnString:      cfg.DatabaseConfig.ConnString(),
		MaxConns:        cfg.DatabaseConfig.MaxConns,
		MinConns:        cfg.DatabaseConfig.MinConns,
		MaxConnLifetime: time.Duration(cfg.DatabaseConfig.MaxConnLifetime) * time.Minute,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err.Error())
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal("Failed to run migrations", "error", err.Error())
	}
	logger.Info("Database ready")

	repo := database.NewRepository(db)
	eventBus := events.NewEventBus()

	// Redis cache is optional; the API degrades to direct reads without it
	var cacheService *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			logger.Warn("Cache unavailable, continuing without it", "error", err.Error())
			cacheService = nil
		} else {
			defer cacheService.Close()
		}
	}

	// Vault-backed credential store. Falls back to in-memory storage in
	// development when Vault is disabled.
	secretsStore, err := secrets.NewStore(cfg.VaultConfig)
	if err != nil {
		logger.Fatal("Failed to initialize secrets store", "error", err.Error())
	}

	authConfig := auth.Config{
		JWTSecret:            cfg.AuthConfig.JWTSecret,
		AccessTokenDuration:  cfg.AuthConfig.AccessTokenDuration,
		RefreshTokenDuration: cfg.AuthConfig.RefreshTokenDuration,
		MinPasswordLength:    cfg.AuthConfig.MinPasswordLength,
		MaxSessionsPerUser:   cfg.AuthConfig.MaxSessionsPerUser,
		AdminEmail:           cfg.AuthConfig.AdminEmail,
		AdminPassword:        cfg.AuthConfig.AdminPassword,
	}
	authService := auth.NewService(repo, authConfig)

	if err := auth.SeedAdminUser(ctx, db, authConfig); err != nil {
		logger.Fatal("Failed to seed admin user", "error", err.Error())
	}

	var billingService *billing.Service
	if cfg.BillingConfig.Enabled {
		billingService = billing.NewService(cfg.BillingConfig, repo, eventBus)
		logger.Info("Billing enabled")
	}

	alertService := alerts.NewService(cfg.WebhookConfig, repo, eventBus)

	botProxy := botproxy.NewProxy(cfg.BotConfig, eventBus, cacheService)
	botProxy.Start()
	defer botProxy.Stop()

	venueClients := buildVenueClients(cfg, logger)

	server := api.NewServer(cfg, api.Deps{
		Repo:           repo,
		EventBus:       eventBus,
		AuthService:    authService,
		BillingService: billingService,
		SecretsStore:   secretsStore,
		AlertService:   alertService,
		BotProxy:       botProxy,
		Venues:         venueClients,
		CacheService:   cacheService,
	})

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("API server failed", "error", err.Error())
		}
	}()

	// Periodic cleanup of expired refresh sessions
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := authService.CleanupExpiredSessions(ctx); err != nil {
					logger.Warn("Session cleanup failed", "error", err.Error())
				}
			}
		}
	}()

	logger.Info("PolyBot server started", "port", cfg.ServerConfig.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err.Error())
	}
	logger.Info("Shutdown complete")
}

// buildVenueClients constructs a client per enabled venue. Disabled
// venues stay nil and their routes answer 503.
func buildVenueClients(cfg *config.Config, logger *logging.Logger) api.VenueClients {
	var clients api.VenueClients

	if cfg.VenuesConfig.Polymarket.Enabled {
		clients.Polymarket = polymarket.NewClient(
			polymarket.WithBaseURL(cfg.VenuesConfig.Polymarket.BaseURL))
		logger.Info("Polymarket client enabled")
	}

	if cfg.VenuesConfig.Kalshi.Enabled {
		key, err := kalshi.LoadPrivateKey(cfg.VenuesConfig.Kalshi.PrivateKeyPath)
		if err != nil {
			logger.Error("Kalshi disabled: failed to load private key", "error", err.Error())
		} else {
			clients.Kalshi = kalshi.NewClient(cfg.VenuesConfig.Kalshi.AccessKeyID, key,
				kalshi.WithBaseURL(cfg.VenuesConfig.Kalshi.BaseURL))
			logger.Info("Kalshi client enabled")
		}
	}

	if cfg.VenuesConfig.Alpaca.Enabled {
		clients.Alpaca = alpaca.NewClient(cfg.VenuesConfig.Alpaca.KeyID, cfg.VenuesConfig.Alpaca.SecretKey,
			alpaca.WithBaseURL(cfg.VenuesConfig.Alpaca.DataURL))
		logger.Info("Alpaca client enabled")
	}

	if cfg.VenuesConfig.Hyperliquid.Enabled {
		clients.Hyperliquid = hyperliquid.NewClient(
			hyperliquid.WithBaseURL(cfg.VenuesConfig.Hyperliquid.BaseURL))
		logger.Info("Hyperliquid client enabled")
	}

	if cfg.VenuesConfig.IBKR.Enabled {
		clients.IBKR = ibkr.NewClient(cfg.VenuesConfig.IBKR.SkipVerify,
			ibkr.WithGatewayURL(cfg.VenuesConfig.IBKR.GatewayURL))
		logger.Info("IBKR client enabled")
	}

	return clients
}
