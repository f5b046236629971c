package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"polybot-server/internal/auth"
	"polybot-server/internal/database"
	"polybot-server/internal/telemetry"
	"polybot-server/internal/tiers"

	"github.com/gin-gonic/gin"
)

// Supported trading platforms for trade records
var knownPlatforms = map[string]bool{
	"polymarket":  true,
	"kalshi":      true,
	"alpaca":      true,
	"hyperliquid": true,
	"ibkr":        true,
}

type createTradeRequest struct {
	Platform   string   `json:"platform" binding:"required"`
	Strategy   string   `json:"strategy"`
	Symbol     string   `json:"symbol" binding:"required"`
	Side       string   `json:"side" binding:"required"`
	Size       float64  `json:"size" binding:"required"`
	EntryPrice *float64 `json:"entry_price"`
	Simulated  *bool    `json:"simulated"`
}

type closeTradeRequest struct {
	ExitPrice float64 `json:"exit_price" binding:"required"`
	Profit    float64 `json:"profit"`
}

// handleListTrades returns the user's trades, newest first
func (s *Server) handleListTrades(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit, offset := paginationParams(c, 50, 200)
	trades, err := s.repo.GetTradesForUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to load trades")
		return
	}

	total, err := s.repo.CountTradesForUser(c.Request.Context(), userID)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to count trades")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trades": emptyIfNil(trades),
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// handleCreateTrade records a new trade. Live trades require a tier
// that includes live trading; free users may only record simulated
// trades.
func (s *Server) handleCreateTrade(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req createTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "platform, symbol, side, and size are required")
		return
	}

	platform := strings.ToLower(req.Platform)
	if !knownPlatforms[platform] {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "unknown platform: "+req.Platform)
		return
	}

	side := strings.ToLower(req.Side)
	if side != "buy" && side != "sell" {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "side must be buy or sell")
		return
	}
	if req.Size <= 0 {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "size must be positive")
		return
	}

	// Trades default to simulated unless the caller explicitly marks
	// them live.
	simulated := true
	if req.Simulated != nil {
		simulated = *req.Simulated
	}
	if !simulated {
		tier := auth.GetUserTier(c)
		if !tiers.GetConfig(tier).LiveTrading {
			errorResponse(c, http.StatusForbidden, "FORBIDDEN", "live trading requires the pro tier or higher")
			return
		}
	}

	trade := &database.Trade{
		UserID:     userID,
		Platform:   platform,
		Strategy:   req.Strategy,
		Symbol:     req.Symbol,
		Side:       side,
		Size:       req.Size,
		EntryPrice: req.EntryPrice,
		Simulated:  simulated,
	}

	if err := s.repo.CreateTrade(c.Request.Context(), trade); err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to record trade")
		return
	}

	telemetry.RecordTrade(platform, simulated)
	if s.eventBus != nil {
		s.eventBus.PublishTradeOpened(userID, platform, trade.Strategy, trade.Symbol, side, trade.Size)
	}

	c.JSON(http.StatusCreated, trade)
}

// handleListOpenTrades returns the user's open trades
func (s *Server) handleListOpenTrades(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	trades, err := s.repo.GetOpenTradesForUser(c.Request.Context(), userID)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to load trades")
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": emptyIfNil(trades)})
}

// handleGetTrade returns a single trade scoped to the user
func (s *Server) handleGetTrade(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	trade, err := s.repo.GetTradeForUser(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "NOT_FOUND", "trade not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to load trade")
		return
	}
	c.JSON(http.StatusOK, trade)
}

// handleCloseTrade records a trade exit and publishes the result
func (s *Server) handleCloseTrade(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req closeTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "exit_price is required")
		return
	}

	tradeID := c.Param("id")
	if err := s.repo.CloseTrade(c.Request.Context(), userID, tradeID, req.ExitPrice, req.Profit); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "NOT_FOUND", "no open trade with that id")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to close trade")
		return
	}

	trade, err := s.repo.GetTradeForUser(c.Request.Context(), userID, tradeID)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to load trade")
		return
	}

	if s.eventBus != nil {
		s.eventBus.PublishTradeClosed(userID, trade.Platform, trade.Symbol, trade.Profit, req.Profit > 0)
	}

	c.JSON(http.StatusOK, trade)
}

// handleDeleteTrade removes a trade record
func (s *Server) handleDeleteTrade(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := s.repo.DeleteTradeForUser(c.Request.Context(), userID, c.Param("id")); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "NOT_FOUND", "trade not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to delete trade")
		return
	}
	successResponse(c, gin.H{"deleted": true})
}

// paginationParams parses limit/offset query params with bounds
func paginationParams(c *gin.Context, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset := 0
	if v, err := strconv.Atoi(c.DefaultQuery("offset", "")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// emptyIfNil keeps JSON arrays as [] instead of null
func emptyIfNil(trades []*database.Trade) []*database.Trade {
	if trades == nil {
		return []*database.Trade{}
	}
	return trades
}
