package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"polybot-server/config"
	"polybot-server/internal/database"
	"polybot-server/internal/events"
	"polybot-server/internal/logging"
	"polybot-server/internal/tiers"
)

// Service handles Stripe subscription billing over the REST API. Only
// the handful of endpoints the server needs are wrapped; requests are
// form-encoded the way Stripe expects.
type Service struct {
	cfg        config.BillingConfig
	repo       *database.Repository
	eventBus   *events.EventBus
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
}

// NewService creates a new billing service. eventBus may be nil; tier
// changes are then applied without broadcasting.
func NewService(cfg config.BillingConfig, repo *database.Repository, eventBus *events.EventBus) *Service {
	return &Service{
		cfg:        cfg,
		repo:       repo,
		eventBus:   eventBus,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api.stripe.com/v1",
		logger:     logging.WithComponent("billing"),
	}
}

// IsConfigured returns true if Stripe is properly configured
func (s *Service) IsConfigured() bool {
	return s.cfg.Enabled && s.cfg.StripeSecretKey != ""
}

// CustomerData represents Stripe customer data
type CustomerData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// CreateCustomer creates a new Stripe customer
func (s *Service) CreateCustomer(ctx context.Context, email, name string) (*CustomerData, error) {
	data := url.Values{}
	data.Set("email", email)
	data.Set("name", name)

	resp, err := s.makeRequest(ctx, "POST", "/customers", data)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	var customer CustomerData
	if err := json.Unmarshal(resp, &customer); err != nil {
		return nil, fmt.Errorf("failed to parse customer response: %w", err)
	}

	return &customer, nil
}

// GetOrCreateCustomer gets the user's existing Stripe customer or
// creates one and persists the ID.
func (s *Service) GetOrCreateCustomer(ctx context.Context, user *database.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	customer, err := s.CreateCustomer(ctx, user.Email, user.Name)
	if err != nil {
		return "", err
	}

	if err := s.repo.SetStripeCustomerID(ctx, user.ID, customer.ID); err != nil {
		s.logger.WithUser(user.ID).WithError(err).Warn("failed to save stripe customer id")
	}

	return customer.ID, nil
}

// CreateCheckoutSession creates a Stripe Checkout session for a paid
// tier and returns the hosted checkout URL.
func (s *Service) CreateCheckoutSession(ctx context.Context, customerID string, tier tiers.Tier) (string, error) {
	priceID, err := s.priceIDForTier(tier)
	if err != nil {
		return "", err
	}

	data := url.Values{}
	data.Set("customer", customerID)
	data.Set("mode", "subscription")
	data.Set("success_url", s.cfg.CheckoutSuccessURL)
	data.Set("cancel_url", s.cfg.CheckoutCancelURL)
	data.Set("line_items[0][price]", priceID)
	data.Set("line_items[0][quantity]", "1")
	data.Set("metadata[tier]", string(tier))
	data.Set("subscription_data[metadata][tier]", string(tier))

	resp, err := s.makeRequest(ctx, "POST", "/checkout/sessions", data)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	var session struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(resp, &session); err != nil {
		return "", fmt.Errorf("failed to parse session response: %w", err)
	}

	return session.URL, nil
}

// CreatePortalSession creates a Stripe Customer Portal session
func (s *Service) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	data := url.Values{}
	data.Set("customer", customerID)
	data.Set("return_url", s.cfg.PortalReturnURL)

	resp, err := s.makeRequest(ctx, "POST", "/billing_portal/sessions", data)
	if err != nil {
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}

	var session struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(resp, &session); err != nil {
		return "", fmt.Errorf("failed to parse session response: %w", err)
	}

	return session.URL, nil
}

// CancelSubscription cancels a subscription at period end
func (s *Service) CancelSubscription(ctx context.Context, subscriptionID string) error {
	data := url.Values{}
	data.Set("cancel_at_period_end", "true")

	if _, err := s.makeRequest(ctx, "POST", "/subscriptions/"+subscriptionID, data); err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}

	return nil
}

// WebhookEvent represents a Stripe webhook event
type WebhookEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Created int64           `json:"created"`
}

// WebhookObject represents the object in a webhook event
type WebhookObject struct {
	Object json.RawMessage `json:"object"`
}

// ErrInvalidSignature is returned for webhooks that fail verification
var ErrInvalidSignature = errors.New("invalid webhook signature")

// HandleWebhook verifies and processes a Stripe webhook event,
// synchronizing the user's tier and subscription status.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if !s.VerifyWebhookSignature(payload, signature) {
		return ErrInvalidSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to parse webhook event: %w", err)
	}

	s.logger.Debug("processing stripe webhook", "event_type", event.Type, "event_id", event.ID)

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event.Data)
	case "customer.subscription.created", "customer.subscription.updated":
		return s.handleSubscriptionUpdated(ctx, event.Data)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event.Data)
	case "invoice.paid":
		return s.handleInvoicePaid(ctx, event.Data)
	case "invoice.payment_failed":
		return s.handlePaymentFailed(ctx, event.Data)
	default:
		s.logger.Debug("ignoring webhook event", "event_type", event.Type)
	}

	return nil
}

// handleCheckoutCompleted upgrades the user after a successful checkout
func (s *Service) handleCheckoutCompleted(ctx context.Context, data json.RawMessage) error {
	var obj WebhookObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	var session struct {
		ID       string `json:"id"`
		Customer string `json:"customer"`
		Metadata struct {
			Tier string `json:"tier"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(obj.Object, &session); err != nil {
		return err
	}

	tier := tiers.Tier(session.Metadata.Tier)
	if !tiers.Valid(tier) {
		s.logger.Warn("checkout completed with unknown tier", "tier", session.Metadata.Tier, "session_id", session.ID)
		return nil
	}

	return s.applyTier(ctx, session.Customer, tier, database.StatusActive)
}

// handleSubscriptionUpdated syncs tier and status from a subscription
func (s *Service) handleSubscriptionUpdated(ctx context.Context, data json.RawMessage) error {
	var obj WebhookObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	var sub struct {
		ID       string `json:"id"`
		Customer string `json:"customer"`
		Status   string `json:"status"`
		Items    struct {
			Data []struct {
				Price struct {
					ID string `json:"id"`
				} `json:"price"`
			} `json:"data"`
		} `json:"items"`
	}
	if err := json.Unmarshal(obj.Object, &sub); err != nil {
		return err
	}

	tier := tiers.TierFree
	for _, item := range sub.Items.Data {
		if t, ok := s.tierForPrice(item.Price.ID); ok {
			tier = t
			break
		}
	}

	var status database.SubscriptionStatus
	switch sub.Status {
	case "active", "trialing":
		status = database.StatusActive
	case "past_due", "unpaid":
		status = database.StatusPastDue
	case "canceled", "incomplete_expired":
		status = database.StatusCancelled
		tier = tiers.TierFree
	default:
		status = database.StatusActive
	}

	return s.applyTier(ctx, sub.Customer, tier, status)
}

// handleSubscriptionDeleted downgrades the user to the free tier
func (s *Service) handleSubscriptionDeleted(ctx context.Context, data json.RawMessage) error {
	var obj WebhookObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	var sub struct {
		ID       string `json:"id"`
		Customer string `json:"customer"`
	}
	if err := json.Unmarshal(obj.Object, &sub); err != nil {
		return err
	}

	return s.applyTier(ctx, sub.Customer, tiers.TierFree, database.StatusCancelled)
}

// handleInvoicePaid reasserts the active status on a successful renewal
// payment, clearing any past-due flag from an earlier failed attempt.
func (s *Service) handleInvoicePaid(ctx context.Context, data json.RawMessage) error {
	var obj WebhookObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	var invoice struct {
		ID       string `json:"id"`
		Customer string `json:"customer"`
	}
	if err := json.Unmarshal(obj.Object, &invoice); err != nil {
		return err
	}

	user, err := s.userForCustomer(ctx, invoice.Customer)
	if err != nil {
		return nil
	}

	if err := s.repo.UpdateUserTier(ctx, user.ID, user.SubscriptionTier, database.StatusActive, user.SubscriptionExpiresAt); err != nil {
		return fmt.Errorf("failed to reactivate subscription: %w", err)
	}
	if s.eventBus != nil {
		s.eventBus.PublishSubscriptionChanged(user.ID, string(user.SubscriptionTier), string(database.StatusActive))
	}
	return nil
}

// handlePaymentFailed marks the subscription past due. The tier stays
// until Stripe cancels the subscription after its retry schedule.
func (s *Service) handlePaymentFailed(ctx context.Context, data json.RawMessage) error {
	var obj WebhookObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	var invoice struct {
		ID       string `json:"id"`
		Customer string `json:"customer"`
	}
	if err := json.Unmarshal(obj.Object, &invoice); err != nil {
		return err
	}

	user, err := s.userForCustomer(ctx, invoice.Customer)
	if err != nil {
		return nil
	}

	if err := s.repo.UpdateUserTier(ctx, user.ID, user.SubscriptionTier, database.StatusPastDue, user.SubscriptionExpiresAt); err != nil {
		s.logger.WithUser(user.ID).WithError(err).Warn("failed to mark subscription past due")
	}
	return nil
}

// applyTier resolves the customer to a user and updates their tier
func (s *Service) applyTier(ctx context.Context, customerID string, tier tiers.Tier, status database.SubscriptionStatus) error {
	user, err := s.userForCustomer(ctx, customerID)
	if err != nil {
		return nil
	}

	if err := s.repo.UpdateUserTier(ctx, user.ID, tier, status, nil); err != nil {
		return fmt.Errorf("failed to update user tier: %w", err)
	}
	if s.eventBus != nil {
		s.eventBus.PublishSubscriptionChanged(user.ID, string(tier), string(status))
	}

	s.logger.WithUser(user.ID).Info("subscription synced",
		"tier", string(tier), "status", string(status), "customer", customerID)
	return nil
}

func (s *Service) userForCustomer(ctx context.Context, customerID string) (*database.User, error) {
	user, err := s.repo.GetUserByStripeCustomer(ctx, customerID)
	if err != nil {
		// Webhooks can arrive for customers created outside this
		// deployment; skip them rather than retrying forever.
		s.logger.Warn("no user for stripe customer", "customer", customerID)
		return nil, err
	}
	return user, nil
}

// VerifyWebhookSignature verifies the Stripe-Signature header
// (t=<timestamp>,v1=<hmac> format, HMAC-SHA256 over "t.payload").
func (s *Service) VerifyWebhookSignature(payload []byte, signatureHeader string) bool {
	if s.cfg.StripeWebhookSecret == "" {
		return true // Dev mode without a webhook secret
	}

	parts := strings.Split(signatureHeader, ",")
	var timestamp string
	var signatures []string

	for _, part := range parts {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	signedPayload := timestamp + "." + string(payload)
	h := hmac.New(sha256.New, []byte(s.cfg.StripeWebhookSecret))
	h.Write([]byte(signedPayload))
	expectedSig := hex.EncodeToString(h.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expectedSig)) {
			return true
		}
	}

	return false
}

// priceIDForTier returns the configured Stripe price for a paid tier
func (s *Service) priceIDForTier(tier tiers.Tier) (string, error) {
	var priceID string
	switch tier {
	case tiers.TierPro:
		priceID = s.cfg.ProPriceID
	case tiers.TierElite:
		priceID = s.cfg.ElitePriceID
	}
	if priceID == "" {
		return "", fmt.Errorf("no price ID configured for tier: %s", tier)
	}
	return priceID, nil
}

// tierForPrice maps a Stripe price back to a tier
func (s *Service) tierForPrice(priceID string) (tiers.Tier, bool) {
	switch priceID {
	case "":
		return "", false
	case s.cfg.ProPriceID:
		return tiers.TierPro, true
	case s.cfg.ElitePriceID:
		return tiers.TierElite, true
	}
	return "", false
}

// makeRequest makes an authenticated form-encoded request to Stripe
func (s *Service) makeRequest(ctx context.Context, method, path string, data url.Values) ([]byte, error) {
	reqURL := s.baseURL + path

	var req *http.Request
	var err error
	if method == "GET" {
		if len(data) > 0 {
			reqURL += "?" + data.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, method, reqURL, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(data.Encode()))
	}
	if err != nil {
		return nil, err
	}

	req.SetBasicAuth(s.cfg.StripeSecretKey, "")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("stripe API error: %s - %s", resp.Status, string(respBody))
	}

	return respBody, nil
}
