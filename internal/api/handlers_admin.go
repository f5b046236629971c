package api

import (
	"errors"
	"net/http"

	"polybot-server/internal/database"
	"polybot-server/internal/events"
	"polybot-server/internal/tiers"

	"github.com/gin-gonic/gin"
)

type setTierRequest struct {
	Tier   string `json:"tier" binding:"required"`
	Status string `json:"status"`
}

// handleAdminListUsers returns a page of registered users
func (s *Server) handleAdminListUsers(c *gin.Context) {
	limit, offset := paginationParams(c, 50, 200)

	users, err := s.repo.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to load users")
		return
	}
	total, err := s.repo.CountUsers(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to count users")
		return
	}
	if users == nil {
		users = []*database.User{}
	}

	c.JSON(http.StatusOK, gin.H{
		"users":  users,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// handleAdminSetUserTier overrides a user's subscription tier, bypassing
// billing. Used for comps and support escalations.
func (s *Server) handleAdminSetUserTier(c *gin.Context) {
	targetID := c.Param("id")

	var req setTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "tier is required")
		return
	}

	tier := tiers.Tier(req.Tier)
	if !tiers.Valid(tier) {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "unknown tier: "+req.Tier)
		return
	}

	status := database.StatusActive
	if req.Status != "" {
		switch database.SubscriptionStatus(req.Status) {
		case database.StatusActive, database.StatusPastDue, database.StatusCancelled:
			status = database.SubscriptionStatus(req.Status)
		default:
			errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "unknown status: "+req.Status)
			return
		}
	}

	if err := s.repo.UpdateUserTier(c.Request.Context(), targetID, tier, status, nil); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "NOT_FOUND", "user not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to update tier")
		return
	}

	s.audit(c, "admin.set_tier", targetID, map[string]interface{}{
		"tier":   string(tier),
		"status": string(status),
	})
	if s.eventBus != nil {
		s.eventBus.PublishSubscriptionChanged(targetID, string(tier), string(status))
	}

	successResponse(c, gin.H{"user_id": targetID, "tier": tier, "status": status})
}

// handleAdminLogoutUser revokes every session the user holds and drops
// their live websocket connections.
func (s *Server) handleAdminLogoutUser(c *gin.Context) {
	targetID := c.Param("id")

	if err := s.repo.RevokeUserSessions(c.Request.Context(), targetID); err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to revoke sessions")
		return
	}

	DisconnectUserWebSockets(targetID)

	s.audit(c, "admin.force_logout", targetID, nil)
	if s.eventBus != nil {
		s.eventBus.Publish(events.Event{
			Type:   events.EventUserLogout,
			UserID: targetID,
		})
	}

	successResponse(c, gin.H{"user_id": targetID})
}

// handleAdminAuditLog returns recent audit entries, optionally filtered
// by user.
func (s *Server) handleAdminAuditLog(c *gin.Context) {
	limit, _ := paginationParams(c, 100, 500)

	entries, err := s.repo.GetAuditLog(c.Request.Context(), c.Query("user_id"), limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to load audit log")
		return
	}
	if entries == nil {
		entries = []*database.AuditEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// handleAdminStats returns a snapshot of operational counters
func (s *Server) handleAdminStats(c *gin.Context) {
	stats := gin.H{
		"websocket_clients": GetWSClientCount(),
	}

	if s.repo != nil {
		if total, err := s.repo.CountUsers(c.Request.Context()); err == nil {
			stats["total_users"] = total
		}
	}
	if s.cacheService != nil {
		stats["cache"] = s.cacheService.GetStats()
	}
	if s.botProxy != nil {
		stats["bot_breaker"] = s.botProxy.BreakerStats()
		stats["bot_status"] = s.botProxy.GetStatus(c.Request.Context())
	}

	c.JSON(http.StatusOK, stats)
}

// handleAdminPruneSessions deletes expired and revoked refresh sessions
func (s *Server) handleAdminPruneSessions(c *gin.Context) {
	pruned, err := s.repo.PruneExpiredSessions(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to prune sessions")
		return
	}

	s.audit(c, "admin.prune_sessions", "", map[string]interface{}{"pruned": pruned})
	successResponse(c, gin.H{"pruned": pruned})
}
