package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"polybot-server/internal/auth"
	"polybot-server/internal/cache"
	"polybot-server/internal/database"
	"polybot-server/internal/tiers"

	"github.com/gin-gonic/gin"
)

// maxConfigValueBytes caps a single config value
const maxConfigValueBytes = 32 * 1024

// handleGetAllConfig returns the user's full config as a key->value map
func (s *Server) handleGetAllConfig(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	entries, err := s.repo.GetAllConfigForUser(c.Request.Context(), userID)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to load config")
		return
	}

	values := make(map[string]json.RawMessage, len(entries))
	for _, e := range entries {
		values[e.Key] = json.RawMessage(e.Value)
	}
	c.JSON(http.StatusOK, gin.H{"config": values})
}

// handleGetConfigValue returns a single config value
func (s *Server) handleGetConfigValue(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	value, err := s.repo.GetConfigValue(c.Request.Context(), userID, c.Param("key"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "NOT_FOUND", "config key not set")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to load config")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"key":   c.Param("key"),
		"value": json.RawMessage(value),
	})
}

// handleSetConfigValue stores a config value. Strategy toggle keys are
// gated by subscription tier, both on which strategies a tier may use
// and on how many may be enabled at once.
func (s *Server) handleSetConfigValue(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "config key is required")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxConfigValueBytes+1))
	if err != nil || len(body) == 0 {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "request body is required")
		return
	}
	if len(body) > maxConfigValueBytes {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "config value too large")
		return
	}
	if !json.Valid(body) {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "config value must be valid JSON")
		return
	}
	value := bytes.TrimSpace(body)

	if strings.HasPrefix(key, "enable_") && bytes.Equal(value, []byte("true")) {
		tier := auth.GetUserTier(c)
		if !tiers.CanEnableStrategy(tier, key) {
			errorResponse(c, http.StatusForbidden, "FORBIDDEN",
				fmt.Sprintf("the %s tier does not include this strategy", tier))
			return
		}

		enabled, err := s.countEnabledStrategies(c, userID, key)
		if err != nil {
			errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to load config")
			return
		}
		if max := tiers.GetConfig(tier).MaxStrategies; enabled >= max {
			errorResponse(c, http.StatusForbidden, "FORBIDDEN",
				fmt.Sprintf("the %s tier allows at most %d enabled strategies", tier, max))
			return
		}
	}

	if err := s.repo.SetConfigValue(c.Request.Context(), userID, key, value); err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to save config")
		return
	}

	if s.cacheService != nil {
		s.cacheService.Delete(c.Request.Context(), cache.UserConfigKey(userID))
	}
	if s.eventBus != nil {
		s.eventBus.PublishConfigChanged(userID, key)
	}

	successResponse(c, gin.H{"key": key})
}

// handleDeleteConfigValue removes a config key
func (s *Server) handleDeleteConfigValue(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	key := c.Param("key")
	if err := s.repo.DeleteConfigValue(c.Request.Context(), userID, key); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "NOT_FOUND", "config key not set")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to delete config")
		return
	}

	if s.cacheService != nil {
		s.cacheService.Delete(c.Request.Context(), cache.UserConfigKey(userID))
	}
	if s.eventBus != nil {
		s.eventBus.PublishConfigChanged(userID, key)
	}

	successResponse(c, gin.H{"deleted": key})
}

// countEnabledStrategies counts enable_* keys currently set to true,
// excluding the key being written.
func (s *Server) countEnabledStrategies(c *gin.Context, userID, excludeKey string) (int, error) {
	entries, err := s.repo.GetAllConfigForUser(c.Request.Context(), userID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, e := range entries {
		if e.Key == excludeKey || !strings.HasPrefix(e.Key, "enable_") {
			continue
		}
		if bytes.Equal(bytes.TrimSpace(e.Value), []byte("true")) {
			count++
		}
	}
	return count, nil
}
