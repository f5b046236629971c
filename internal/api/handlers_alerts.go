package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"polybot-server/internal/alerts"
	"polybot-server/internal/database"

	"github.com/gin-gonic/gin"
)

// handleTradingViewWebhook ingests TradingView alert webhooks. The
// shared secret inside the payload authenticates the caller; no JWT.
func (s *Server) handleTradingViewWebhook(c *gin.Context) {
	if s.alertService == nil {
		errorResponse(c, http.StatusServiceUnavailable, "WEBHOOKS_DISABLED", "webhook ingestion is not configured")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, alerts.MaxPayloadBytes+1))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "failed to read payload")
		return
	}

	alert, err := s.alertService.Ingest(c.Request.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, alerts.ErrInvalidSecret):
			errorResponse(c, http.StatusUnauthorized, "INVALID_SECRET", "webhook secret does not match")
		case errors.Is(err, alerts.ErrPayloadTooBig):
			errorResponse(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "alert payload too large")
		case errors.Is(err, alerts.ErrMalformedAlert),
			errors.Is(err, alerts.ErrMissingSymbol),
			errors.Is(err, alerts.ErrUnknownAction):
			errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		default:
			errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to record alert")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "alert_id": alert.ID})
}

// handleListAlerts returns recently received alerts. Pro tier and up.
func (s *Server) handleListAlerts(c *gin.Context) {
	if s.alertService == nil {
		errorResponse(c, http.StatusServiceUnavailable, "WEBHOOKS_DISABLED", "webhook ingestion is not configured")
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	recent, err := s.alertService.Recent(c.Request.Context(), limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to load alerts")
		return
	}
	if recent == nil {
		recent = []*database.WebhookAlert{}
	}
	c.JSON(http.StatusOK, gin.H{"alerts": recent})
}
