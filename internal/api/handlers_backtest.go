package api

import (
	"fmt"
	"math"
	"net/http"

	"polybot-server/internal/auth"
	"polybot-server/internal/backtest"
	"polybot-server/internal/telemetry"
	"polybot-server/internal/tiers"

	"github.com/gin-gonic/gin"
)

// handleListBacktestStrategies returns the strategies the simulator knows
func (s *Server) handleListBacktestStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"strategies": backtest.Strategies(),
		"disclosure": backtest.SyntheticDisclosure,
	})
}

// handleRunBacktest runs a synthetic simulation. The lookback window is
// capped by the caller's subscription tier.
func (s *Server) handleRunBacktest(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req backtest.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "invalid backtest request")
		return
	}

	tier := auth.GetUserTier(c)
	maxDays := tiers.GetConfig(tier).MaxBacktestDays
	if req.Days > maxDays {
		errorResponse(c, http.StatusForbidden, "FORBIDDEN",
			fmt.Sprintf("the %s tier allows backtests up to %d days", tier, maxDays))
		return
	}

	result, err := s.simulator.Run(req)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	// +Inf profit factor is not representable in JSON
	if result.Summary != nil && math.IsInf(result.Summary.ProfitFactor, 1) {
		result.Summary.ProfitFactor = 0
	}

	telemetry.BacktestsRunTotal.Inc()
	if s.eventBus != nil {
		totalProfit := 0.0
		if result.Summary != nil {
			totalProfit = result.Summary.TotalProfit
		}
		s.eventBus.PublishBacktestCompleted(userID, result.Strategy, result.Days, totalProfit)
	}

	c.JSON(http.StatusOK, result)
}
