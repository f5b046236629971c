package api

import (
	"errors"
	"io"
	"net/http"

	"polybot-server/internal/billing"
	"polybot-server/internal/tiers"

	"github.com/gin-gonic/gin"
)

type checkoutRequest struct {
	Tier string `json:"tier" binding:"required"`
}

// handleListTiers returns the public tier catalog
func (s *Server) handleListTiers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tiers":      tiers.Configs,
		"strategies": tiers.StrategyFlags(),
	})
}

// handleCreateCheckout starts a Stripe checkout session for a paid tier
func (s *Server) handleCreateCheckout(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if s.billingService == nil || !s.billingService.IsConfigured() {
		errorResponse(c, http.StatusServiceUnavailable, "BILLING_DISABLED", "billing is not configured")
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "tier is required")
		return
	}

	tier := tiers.Tier(req.Tier)
	if !tiers.Valid(tier) || tier == tiers.TierFree {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "tier must be pro or elite")
		return
	}

	user, err := s.repo.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to load user")
		return
	}

	customerID, err := s.billingService.GetOrCreateCustomer(c.Request.Context(), user)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "BILLING_ERROR", "failed to create billing customer")
		return
	}

	url, err := s.billingService.CreateCheckoutSession(c.Request.Context(), customerID, tier)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "BILLING_ERROR", "failed to create checkout session")
		return
	}

	successResponse(c, gin.H{"checkout_url": url})
}

// handleCreatePortal opens the Stripe billing portal for the user
func (s *Server) handleCreatePortal(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if s.billingService == nil || !s.billingService.IsConfigured() {
		errorResponse(c, http.StatusServiceUnavailable, "BILLING_DISABLED", "billing is not configured")
		return
	}

	user, err := s.repo.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to load user")
		return
	}
	if user.StripeCustomerID == "" {
		errorResponse(c, http.StatusBadRequest, "NO_SUBSCRIPTION", "no billing account yet")
		return
	}

	url, err := s.billingService.CreatePortalSession(c.Request.Context(), user.StripeCustomerID)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "BILLING_ERROR", "failed to create portal session")
		return
	}

	successResponse(c, gin.H{"portal_url": url})
}

// handleStripeWebhook processes Stripe subscription events. Stripe
// authenticates with a signature header, not a JWT.
func (s *Server) handleStripeWebhook(c *gin.Context) {
	if s.billingService == nil {
		errorResponse(c, http.StatusServiceUnavailable, "BILLING_DISABLED", "billing is not configured")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "failed to read payload")
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := s.billingService.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			errorResponse(c, http.StatusUnauthorized, "INVALID_SIGNATURE", "webhook signature verification failed")
			return
		}
		// Non-signature failures return 500 so Stripe retries delivery
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "webhook processing failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
