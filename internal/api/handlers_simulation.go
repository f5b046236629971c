package api

import (
	"net/http"

	"polybot-server/internal/cache"
	"polybot-server/internal/database"

	"github.com/gin-gonic/gin"
)

// handleResetSimulation archives the user's simulated trades into a
// session snapshot and clears the paper-trading slate.
func (s *Server) handleResetSimulation(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID, err := s.repo.ResetSimulation(c.Request.Context(), userID)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to reset simulation")
		return
	}

	if s.cacheService != nil {
		s.cacheService.Delete(c.Request.Context(), cache.UserAnalyticsKey(userID))
	}

	s.audit(c, "simulation.reset", sessionID, nil)
	if s.eventBus != nil {
		s.eventBus.PublishSimulationReset(userID, sessionID)
	}

	successResponse(c, gin.H{"session_id": sessionID})
}

// handleListSimulationSessions returns archived simulation snapshots
func (s *Server) handleListSimulationSessions(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit, _ := paginationParams(c, 20, 100)
	sessions, err := s.repo.GetSimulationSessions(c.Request.Context(), userID, limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to load sessions")
		return
	}
	if sessions == nil {
		sessions = []*database.SimulationSession{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}
