package api

import (
	"math"
	"net/http"
	"strconv"

	"polybot-server/internal/analytics"
	"polybot-server/internal/cache"
	"polybot-server/internal/database"

	"github.com/gin-gonic/gin"
)

// defaultStartingBalance is assumed when the caller does not supply one
const defaultStartingBalance = 10000.0

type analyticsResponse struct {
	Summary   *analytics.Summary `json:"summary"`
	Simulated bool               `json:"simulated_only"`
	Trades    int                `json:"trades"`
}

// handleAnalyticsSummary computes performance metrics over the user's
// closed trades. Results are cached briefly since the calculation walks
// every closed trade.
func (s *Server) handleAnalyticsSummary(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	simulatedOnly := c.DefaultQuery("simulated", "false") == "true"
	startingBalance := defaultStartingBalance
	if v, err := strconv.ParseFloat(c.Query("starting_balance"), 64); err == nil && v > 0 {
		startingBalance = v
	}

	cacheKey := cache.UserAnalyticsKey(userID)
	if s.cacheService != nil && !simulatedOnly && startingBalance == defaultStartingBalance {
		var cached analyticsResponse
		if err := s.cacheService.GetJSON(c.Request.Context(), cacheKey, &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	trades, err := s.repo.GetClosedTradesForUser(c.Request.Context(), userID, simulatedOnly)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to load trades")
		return
	}

	summary := analytics.Calculate(toAnalyticsTrades(trades), startingBalance)
	if summary != nil && math.IsInf(summary.ProfitFactor, 1) {
		// JSON cannot carry +Inf; the calculator documents this case
		summary.ProfitFactor = 0
	}

	resp := analyticsResponse{
		Summary:   summary,
		Simulated: simulatedOnly,
		Trades:    len(trades),
	}

	if s.cacheService != nil && !simulatedOnly && startingBalance == defaultStartingBalance {
		s.cacheService.SetJSON(c.Request.Context(), cacheKey, resp, cache.DefaultAnalyticsTTL)
	}

	c.JSON(http.StatusOK, resp)
}

func toAnalyticsTrades(trades []*database.Trade) []analytics.Trade {
	out := make([]analytics.Trade, 0, len(trades))
	for _, t := range trades {
		if t.ClosedAt == nil {
			continue
		}
		win := t.Profit > 0
		if t.Win != nil {
			win = *t.Win
		}
		out = append(out, analytics.Trade{
			Timestamp: *t.ClosedAt,
			Profit:    t.Profit,
			Size:      t.Size,
			Win:       win,
		})
	}
	return out
}
