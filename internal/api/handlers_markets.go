package api

import (
	"net/http"
	"strconv"
	"strings"

	"polybot-server/internal/cache"
	"polybot-server/internal/telemetry"
	"polybot-server/internal/venues/polymarket"

	"github.com/gin-gonic/gin"
)

// Polymarket

func (s *Server) handlePolymarketMarkets(c *gin.Context) {
	if s.venues.Polymarket == nil {
		errorResponse(c, http.StatusServiceUnavailable, "VENUE_DISABLED", "polymarket is not enabled")
		return
	}

	limit, offset := paginationParams(c, 50, 200)
	filter := &polymarket.MarketsFilter{Limit: limit, Offset: offset}
	if v := c.Query("active"); v != "" {
		active := v == "true"
		filter.Active = &active
	}
	if v := c.Query("closed"); v != "" {
		closed := v == "true"
		filter.Closed = &closed
	}
	filter.Slug = c.Query("slug")

	// Only the unfiltered first page is worth caching
	cacheable := s.cacheService != nil && filter.Active == nil && filter.Closed == nil &&
		filter.Slug == "" && offset == 0 && limit == 50
	cacheKey := cache.VenueMarketsKey("polymarket")
	if cacheable {
		var cached []polymarket.Market
		if err := s.cacheService.GetJSON(c.Request.Context(), cacheKey, &cached); err == nil {
			c.JSON(http.StatusOK, gin.H{"markets": cached, "cached": true})
			return
		}
	}

	markets, err := s.venues.Polymarket.ListMarkets(c.Request.Context(), filter)
	telemetry.RecordVenueRequest("polymarket", err)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "VENUE_ERROR", "polymarket request failed")
		return
	}

	if cacheable {
		s.cacheService.SetJSON(c.Request.Context(), cacheKey, markets, cache.DefaultMarketsTTL)
	}
	c.JSON(http.StatusOK, gin.H{"markets": markets})
}

func (s *Server) handlePolymarketEvents(c *gin.Context) {
	if s.venues.Polymarket == nil {
		errorResponse(c, http.StatusServiceUnavailable, "VENUE_DISABLED", "polymarket is not enabled")
		return
	}

	limit, offset := paginationParams(c, 50, 200)
	activeOnly := c.DefaultQuery("active", "true") != "false"

	events, err := s.venues.Polymarket.ListEvents(c.Request.Context(), activeOnly, limit, offset)
	telemetry.RecordVenueRequest("polymarket", err)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "VENUE_ERROR", "polymarket request failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handlePolymarketMarket(c *gin.Context) {
	if s.venues.Polymarket == nil {
		errorResponse(c, http.StatusServiceUnavailable, "VENUE_DISABLED", "polymarket is not enabled")
		return
	}

	market, err := s.venues.Polymarket.GetMarket(c.Request.Context(), c.Param("id"))
	telemetry.RecordVenueRequest("polymarket", err)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "VENUE_ERROR", "polymarket request failed")
		return
	}
	c.JSON(http.StatusOK, market)
}

// Kalshi

func (s *Server) handleKalshiMarkets(c *gin.Context) {
	if s.venues.Kalshi == nil {
		errorResponse(c, http.StatusServiceUnavailable, "VENUE_DISABLED", "kalshi is not enabled")
		return
	}

	limit, _ := paginationParams(c, 100, 200)
	markets, err := s.venues.Kalshi.GetMarkets(c.Request.Context(), c.Query("event_ticker"), limit)
	telemetry.RecordVenueRequest("kalshi", err)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "VENUE_ERROR", "kalshi request failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"markets": markets})
}

func (s *Server) handleKalshiBalance(c *gin.Context) {
	if s.venues.Kalshi == nil {
		errorResponse(c, http.StatusServiceUnavailable, "VENUE_DISABLED", "kalshi is not enabled")
		return
	}

	balance, err := s.venues.Kalshi.GetBalance(c.Request.Context())
	telemetry.RecordVenueRequest("kalshi", err)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "VENUE_ERROR", "kalshi request failed")
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (s *Server) handleKalshiPositions(c *gin.Context) {
	if s.venues.Kalshi == nil {
		errorResponse(c, http.StatusServiceUnavailable, "VENUE_DISABLED", "kalshi is not enabled")
		return
	}

	positions, err := s.venues.Kalshi.GetPositions(c.Request.Context())
	telemetry.RecordVenueRequest("kalshi", err)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "VENUE_ERROR", "kalshi request failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (s *Server) handleKalshiMarket(c *gin.Context) {
	if s.venues.Kalshi == nil {
		errorResponse(c, http.StatusServiceUnavailable, "VENUE_DISABLED", "kalshi is not enabled")
		return
	}

	market, err := s.venues.Kalshi.GetMarket(c.Request.Context(), strings.ToUpper(c.Param("ticker")))
	telemetry.RecordVenueRequest("kalshi", err)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "VENUE_ERROR", "kalshi request failed")
		return
	}
	c.JSON(http.StatusOK, market)
}

// Alpaca

func (s *Server) handleAlpacaQuote(c *gin.Context) {
	if s.venues.Alpaca == nil {
		errorResponse(c, http.StatusServiceUnavailable, "VENUE_DISABLED", "alpaca is not enabled")
		return
	}

	symbol := strings.ToUpper(c.Param("symbol"))
	quote, err := s.venues.Alpaca.GetLatestQuote(c.Request.Context(), symbol)
	telemetry.RecordVenueRequest("alpaca", err)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "VENUE_ERROR", "alpaca request failed")
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (s *Server) handleAlpacaBars(c *gin.Context) {
	if s.venues.Alpaca == nil {
		errorResponse(c, http.StatusServiceUnavailable, "VENUE_DISABLED", "alpaca is not enabled")
		return
	}

	symbol := strings.ToUpper(c.Param("symbol"))
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	bars, err := s.venues.Alpaca.GetBars(c.Request.Context(), symbol, limit)
	telemetry.RecordVenueRequest("alpaca", err)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "VENUE_ERROR", "alpaca request failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "bars": bars})
}

// Hyperliquid

func (s *Server) handleHyperliquidMids(c *gin.Context) {
	if s.venues.Hyperliquid == nil {
		errorResponse(c, http.StatusServiceUnavailable, "VENUE_DISABLED", "hyperliquid is not enabled")
		return
	}

	mids, err := s.venues.Hyperliquid.GetAllMids(c.Request.Context())
	telemetry.RecordVenueRequest("hyperliquid", err)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "VENUE_ERROR", "hyperliquid request failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"mids": mids})
}

func (s *Server) handleHyperliquidState(c *gin.Context) {
	if s.venues.Hyperliquid == nil {
		errorResponse(c, http.StatusServiceUnavailable, "VENUE_DISABLED", "hyperliquid is not enabled")
		return
	}

	address := c.Query("address")
	if address == "" {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "address query parameter is required")
		return
	}

	state, err := s.venues.Hyperliquid.GetUserState(c.Request.Context(), address)
	telemetry.RecordVenueRequest("hyperliquid", err)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "VENUE_ERROR", "hyperliquid request failed")
		return
	}
	c.JSON(http.StatusOK, state)
}

// IBKR

func (s *Server) handleIBKRStatus(c *gin.Context) {
	if s.venues.IBKR == nil {
		errorResponse(c, http.StatusServiceUnavailable, "VENUE_DISABLED", "ibkr is not enabled")
		return
	}

	status, err := s.venues.IBKR.GetAuthStatus(c.Request.Context())
	telemetry.RecordVenueRequest("ibkr", err)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "VENUE_ERROR", "ibkr gateway request failed")
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleIBKRAccounts(c *gin.Context) {
	if s.venues.IBKR == nil {
		errorResponse(c, http.StatusServiceUnavailable, "VENUE_DISABLED", "ibkr is not enabled")
		return
	}

	accounts, err := s.venues.IBKR.GetAccounts(c.Request.Context())
	telemetry.RecordVenueRequest("ibkr", err)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "VENUE_ERROR", "ibkr gateway request failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (s *Server) handleIBKRPositions(c *gin.Context) {
	if s.venues.IBKR == nil {
		errorResponse(c, http.StatusServiceUnavailable, "VENUE_DISABLED", "ibkr is not enabled")
		return
	}

	accountID := c.Query("account")
	if accountID == "" {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "account query parameter is required")
		return
	}

	positions, err := s.venues.IBKR.GetPositions(c.Request.Context(), accountID)
	telemetry.RecordVenueRequest("ibkr", err)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "VENUE_ERROR", "ibkr gateway request failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": accountID, "positions": positions})
}
