package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type botCommandRequest struct {
	Action string `json:"action" binding:"required"`
}

// handleBotStatus returns the trading bot's last known status
func (s *Server) handleBotStatus(c *gin.Context) {
	if s.botProxy == nil {
		errorResponse(c, http.StatusServiceUnavailable, "BOT_DISABLED", "bot monitoring is not configured")
		return
	}
	c.JSON(http.StatusOK, s.botProxy.GetStatus(c.Request.Context()))
}

// handleBotCommand forwards a start/stop/restart command to the bot.
// Admin only.
func (s *Server) handleBotCommand(c *gin.Context) {
	if s.botProxy == nil {
		errorResponse(c, http.StatusServiceUnavailable, "BOT_DISABLED", "bot monitoring is not configured")
		return
	}

	var req botCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "action is required")
		return
	}

	action := strings.ToLower(strings.TrimSpace(req.Action))
	if err := s.botProxy.Command(c.Request.Context(), action); err != nil {
		if strings.Contains(err.Error(), "unknown bot command") {
			errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
		errorResponse(c, http.StatusBadGateway, "BOT_UNREACHABLE", err.Error())
		return
	}

	s.audit(c, "bot.command", action, nil)
	successResponse(c, gin.H{"action": action})
}

// handleBotBreakerStatus returns the bot connection breaker's counters
func (s *Server) handleBotBreakerStatus(c *gin.Context) {
	if s.botProxy == nil {
		errorResponse(c, http.StatusServiceUnavailable, "BOT_DISABLED", "bot monitoring is not configured")
		return
	}
	c.JSON(http.StatusOK, s.botProxy.BreakerStats())
}

// handleBotBreakerReset force-closes the bot connection breaker. Admin
// only.
func (s *Server) handleBotBreakerReset(c *gin.Context) {
	if s.botProxy == nil {
		errorResponse(c, http.StatusServiceUnavailable, "BOT_DISABLED", "bot monitoring is not configured")
		return
	}

	s.botProxy.ResetBreaker()
	s.audit(c, "bot.breaker_reset", "", nil)
	successResponse(c, s.botProxy.BreakerStats())
}
