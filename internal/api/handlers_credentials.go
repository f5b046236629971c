package api

import (
	"errors"
	"net/http"
	"strings"

	"polybot-server/internal/database"
	"polybot-server/internal/secrets"

	"github.com/gin-gonic/gin"
)

type upsertCredentialRequest struct {
	APIKey     string `json:"api_key" binding:"required"`
	APISecret  string `json:"api_secret"`
	Passphrase string `json:"passphrase"`
	PrivateKey string `json:"private_key"`
	Label      string `json:"label"`
}

// handleListCredentials returns credential references. Secret material
// never leaves Vault; only the last four characters are exposed.
func (s *Server) handleListCredentials(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	creds, err := s.repo.GetCredentialsForUser(c.Request.Context(), userID)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to load credentials")
		return
	}
	if creds == nil {
		creds = []*database.ExchangeCredential{}
	}
	c.JSON(http.StatusOK, gin.H{"credentials": creds})
}

// handleUpsertCredential stores exchange API keys. The secret goes to
// Vault; the database keeps only a reference row.
func (s *Server) handleUpsertCredential(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	exchange := strings.ToLower(c.Param("exchange"))
	if !knownPlatforms[exchange] {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "unknown exchange: "+exchange)
		return
	}

	var req upsertCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", "api_key is required")
		return
	}

	cred := secrets.Credential{
		Exchange:   exchange,
		APIKey:     req.APIKey,
		APISecret:  req.APISecret,
		Passphrase: req.Passphrase,
		PrivateKey: req.PrivateKey,
	}

	vaultPath, err := s.secretsStore.Put(c.Request.Context(), userID, cred)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to store credential")
		return
	}

	ref := &database.ExchangeCredential{
		UserID:           userID,
		Exchange:         exchange,
		VaultSecretPath:  vaultPath,
		APIKeyLastFour:   cred.LastFour(),
		Label:            req.Label,
		IsActive:         true,
		ValidationStatus: database.ValidationPending,
	}
	if err := s.repo.UpsertCredential(c.Request.Context(), ref); err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to save credential reference")
		return
	}

	s.audit(c, "credential.upsert", exchange, nil)
	s.eventBus.PublishCredentialChanged(userID, exchange, "upsert")

	c.JSON(http.StatusOK, ref)
}

// handleDeleteCredential removes a credential from Vault and the
// reference row.
func (s *Server) handleDeleteCredential(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	exchange := strings.ToLower(c.Param("exchange"))
	if err := s.repo.DeleteCredentialForUser(c.Request.Context(), userID, exchange); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "NOT_FOUND", "no credential for that exchange")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "failed to delete credential")
		return
	}

	// Vault deletion after the reference row so a failure leaves a
	// re-deletable secret rather than a dangling reference.
	if err := s.secretsStore.Delete(c.Request.Context(), userID, exchange); err != nil {
		s.logger.Warn("Failed to delete vault secret", "exchange", exchange, "error", err.Error())
	}

	s.audit(c, "credential.delete", exchange, nil)
	s.eventBus.PublishCredentialChanged(userID, exchange, "delete")

	successResponse(c, gin.H{"deleted": exchange})
}
