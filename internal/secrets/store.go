package secrets

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"polybot-server/config"
	"polybot-server/internal/logging"
)

// Credential holds the secret material for one venue. Shape varies by
// venue: Polymarket uses a wallet private key, Kalshi an RSA key ID,
// brokers a key/secret pair.
type Credential struct {
	Exchange   string `json:"exchange"`
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	Passphrase string `json:"passphrase,omitempty"`
	PrivateKey string `json:"private_key,omitempty"` // PEM or hex, venue dependent
}

// LastFour returns the trailing characters of the API key for display
func (c Credential) LastFour() string {
	if len(c.APIKey) < 4 {
		return c.APIKey
	}
	return c.APIKey[len(c.APIKey)-4:]
}

// Store keeps venue credentials in Vault's KV v2 engine, one secret per
// (user, exchange). When Vault is disabled it degrades to an in-memory
// map so local development works without a Vault server.
type Store struct {
	client       *api.Client
	config       config.VaultConfig
	logger       *logging.Logger
	mu           sync.RWMutex
	cache        map[string]*Credential // userID/exchange -> credential
	cacheEnabled bool
}

// NewStore creates a credential store backed by Vault
func NewStore(cfg config.VaultConfig) (*Store, error) {
	logger := logging.WithComponent("secrets")

	if !cfg.Enabled {
		logger.Warn("vault disabled, credentials held in memory only")
		return &Store{
			config:       cfg,
			logger:       logger,
			cache:        make(map[string]*Credential),
			cacheEnabled: true,
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Store{
		client:       client,
		config:       cfg,
		logger:       logger,
		cache:        make(map[string]*Credential),
		cacheEnabled: true,
	}, nil
}

// NewMockStore creates an in-memory store for testing
func NewMockStore() *Store {
	return &Store{
		config:       config.VaultConfig{Enabled: false},
		logger:       logging.WithComponent("secrets"),
		cache:        make(map[string]*Credential),
		cacheEnabled: true,
	}
}

// Put stores a credential for a user and returns the vault path it was
// written to.
func (s *Store) Put(ctx context.Context, userID string, cred Credential) (string, error) {
	path := s.secretPath(userID, cred.Exchange)

	if !s.config.Enabled {
		c := cred
		s.mu.Lock()
		s.cache[s.cacheKey(userID, cred.Exchange)] = &c
		s.mu.Unlock()
		return path, nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"exchange":    cred.Exchange,
			"api_key":     cred.APIKey,
			"api_secret":  cred.APISecret,
			"passphrase":  cred.Passphrase,
			"private_key": cred.PrivateKey,
		},
	}

	if _, err := s.client.Logical().WriteWithContext(ctx, path, secretData); err != nil {
		return "", fmt.Errorf("failed to store credential in vault: %w", err)
	}

	if s.cacheEnabled {
		c := cred
		s.mu.Lock()
		s.cache[s.cacheKey(userID, cred.Exchange)] = &c
		s.mu.Unlock()
	}

	return path, nil
}

// Get retrieves a credential for a user
func (s *Store) Get(ctx context.Context, userID, exchange string) (*Credential, error) {
	if s.cacheEnabled {
		s.mu.RLock()
		if cached, ok := s.cache[s.cacheKey(userID, exchange)]; ok {
			s.mu.RUnlock()
			return cached, nil
		}
		s.mu.RUnlock()
	}

	if !s.config.Enabled {
		return nil, fmt.Errorf("credential not found and vault is disabled")
	}

	path := s.secretPath(userID, exchange)

	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("credential not found")
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	cred := &Credential{
		Exchange:   getString(data, "exchange"),
		APIKey:     getString(data, "api_key"),
		APISecret:  getString(data, "api_secret"),
		Passphrase: getString(data, "passphrase"),
		PrivateKey: getString(data, "private_key"),
	}

	if s.cacheEnabled {
		s.mu.Lock()
		s.cache[s.cacheKey(userID, exchange)] = cred
		s.mu.Unlock()
	}

	return cred, nil
}

// Delete removes a credential for a user
func (s *Store) Delete(ctx context.Context, userID, exchange string) error {
	s.mu.Lock()
	delete(s.cache, s.cacheKey(userID, exchange))
	s.mu.Unlock()

	if !s.config.Enabled {
		return nil
	}

	path := s.metadataPath(userID, exchange)

	if _, err := s.client.Logical().DeleteWithContext(ctx, path); err != nil {
		return fmt.Errorf("failed to delete credential from vault: %w", err)
	}

	return nil
}

// InvalidateUser removes cached credentials for a specific user
func (s *Store) InvalidateUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := userID + "/"
	for key := range s.cache {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(s.cache, key)
		}
	}
}

// ClearCache clears the in-memory cache
func (s *Store) ClearCache() {
	s.mu.Lock()
	s.cache = make(map[string]*Credential)
	s.mu.Unlock()
}

// SetCacheEnabled enables or disables caching
func (s *Store) SetCacheEnabled(enabled bool) {
	s.mu.Lock()
	s.cacheEnabled = enabled
	s.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (s *Store) IsEnabled() bool {
	return s.config.Enabled
}

// Health checks the Vault connection
func (s *Store) Health(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}

	health, err := s.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// secretPath returns the KV v2 data path for a credential
func (s *Store) secretPath(userID, exchange string) string {
	return fmt.Sprintf("%s/data/%s/%s/%s", s.config.MountPath, s.config.SecretPath, userID, exchange)
}

// metadataPath returns the KV v2 metadata path for a credential
func (s *Store) metadataPath(userID, exchange string) string {
	return fmt.Sprintf("%s/metadata/%s/%s/%s", s.config.MountPath, s.config.SecretPath, userID, exchange)
}

func (s *Store) cacheKey(userID, exchange string) string {
	return userID + "/" + exchange
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
