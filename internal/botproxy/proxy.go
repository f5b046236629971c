// Package botproxy supervises the external trading bot process over its
// HTTP control API. It polls the bot's health on an interval, tracks the
// last known status, and trips a circuit breaker when the bot stops
// responding so callers fail fast instead of piling up timeouts.
package botproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"polybot-server/config"
	"polybot-server/internal/cache"
	"polybot-server/internal/circuit"
	"polybot-server/internal/events"
	"polybot-server/internal/logging"
	"polybot-server/internal/telemetry"
)

// Bot process states as reported through GetStatus
const (
	StateRunning     = "running"
	StateStopped     = "stopped"
	StateUnreachable = "unreachable"
	StateUnknown     = "unknown"
)

// Status is the last known snapshot of the external bot process
type Status struct {
	State         string     `json:"state"`
	Healthy       bool       `json:"healthy"`
	Version       string     `json:"version,omitempty"`
	UptimeSeconds float64    `json:"uptime_seconds,omitempty"`
	OpenPositions int        `json:"open_positions"`
	ActiveVenues  []string   `json:"active_venues,omitempty"`
	LastTradeAt   *time.Time `json:"last_trade_at,omitempty"`
	CheckedAt     time.Time  `json:"checked_at"`
	Detail        string     `json:"detail,omitempty"`
}

// statusResponse is the bot's own /status payload
type statusResponse struct {
	State         string     `json:"state"`
	Version       string     `json:"version"`
	UptimeSeconds float64    `json:"uptime_seconds"`
	OpenPositions int        `json:"open_positions"`
	ActiveVenues  []string   `json:"active_venues"`
	LastTradeAt   *time.Time `json:"last_trade_at"`
}

// Proxy polls the external bot and relays control commands to it
type Proxy struct {
	cfg        config.BotConfig
	httpClient *http.Client
	breaker    *circuit.Breaker
	bus        *events.EventBus
	cache      *cache.CacheService
	logger     *logging.Logger

	mu         sync.RWMutex
	lastStatus Status

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewProxy creates a bot proxy. cacheService may be nil when Redis is
// disabled.
func NewProxy(cfg config.BotConfig, bus *events.EventBus, cacheService *cache.CacheService) *Proxy {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 5 * time.Second
	}

	return &Proxy{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HealthTimeout,
		},
		breaker: circuit.NewBreaker("bot", circuit.DefaultConfig()),
		bus:     bus,
		cache:   cacheService,
		logger:  logging.WithComponent("botproxy"),
		lastStatus: Status{
			State: StateUnknown,
		},
		stopChan: make(chan struct{}),
	}
}

// Start begins the background polling loop
func (p *Proxy) Start() {
	p.logger.Info("Bot proxy started",
		"base_url", p.cfg.BaseURL,
		"poll_interval", p.cfg.PollInterval.String())

	p.wg.Add(1)
	go p.pollLoop()
}

// Stop halts the polling loop and waits for it to exit
func (p *Proxy) Stop() {
	close(p.stopChan)
	p.wg.Wait()
	p.logger.Info("Bot proxy stopped")
}

func (p *Proxy) pollLoop() {
	defer p.wg.Done()

	// Poll once immediately so status is populated at startup
	p.poll()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.poll()
		case <-p.stopChan:
			return
		}
	}
}

func (p *Proxy) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.HealthTimeout)
	defer cancel()

	if !p.breaker.Allow() {
		// Breaker open, record the rejection as an unreachable snapshot
		// without hitting the bot.
		telemetry.RecordBotPoll("rejected")
		p.updateStatus(Status{
			State:     StateUnreachable,
			CheckedAt: time.Now(),
			Detail:    "circuit breaker open",
		})
		return
	}

	status, err := p.fetchStatus(ctx)
	if err != nil {
		p.breaker.RecordFailure(err.Error())
		telemetry.RecordBotPoll("failed")
		p.updateStatus(Status{
			State:     StateUnreachable,
			CheckedAt: time.Now(),
			Detail:    err.Error(),
		})
		return
	}

	p.breaker.RecordSuccess()
	telemetry.RecordBotPoll("ok")
	p.updateStatus(status)
}

func (p *Proxy) fetchStatus(ctx context.Context) (Status, error) {
	var resp statusResponse
	if err := p.doJSON(ctx, http.MethodGet, "/status", nil, &resp); err != nil {
		return Status{}, err
	}

	state := resp.State
	if state == "" {
		state = StateRunning
	}

	return Status{
		State:         state,
		Healthy:       state == StateRunning,
		Version:       resp.Version,
		UptimeSeconds: resp.UptimeSeconds,
		OpenPositions: resp.OpenPositions,
		ActiveVenues:  resp.ActiveVenues,
		LastTradeAt:   resp.LastTradeAt,
		CheckedAt:     time.Now(),
	}, nil
}

// updateStatus stores the snapshot and publishes a status event when the
// bot's state changed since the last poll.
func (p *Proxy) updateStatus(status Status) {
	p.mu.Lock()
	previous := p.lastStatus
	p.lastStatus = status
	p.mu.Unlock()

	if p.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := p.cache.SetJSON(ctx, cache.BotStatusKey(), status, cache.DefaultBotStatusTTL); err != nil {
			p.logger.Debug("Failed to cache bot status", "error", err.Error())
		}
		cancel()
	}

	if previous.State == status.State {
		return
	}

	p.logger.Info("Bot status changed",
		"from", previous.State,
		"to", status.State,
		"detail", status.Detail)

	if p.bus != nil {
		p.bus.PublishBotStatus(status.State, status.Healthy, status.Detail)
	}
	events.BroadcastBotStatus(status)
}

// GetStatus returns the last known bot status. When this process has no
// snapshot yet (fresh start) it falls back to the Redis copy, which may
// have been written by a previous instance.
func (p *Proxy) GetStatus(ctx context.Context) Status {
	p.mu.RLock()
	status := p.lastStatus
	p.mu.RUnlock()

	if status.State != StateUnknown || p.cache == nil {
		return status
	}

	var cached Status
	if err := p.cache.GetJSON(ctx, cache.BotStatusKey(), &cached); err == nil {
		return cached
	}
	return status
}

// Valid control commands accepted by Command
const (
	CommandStart   = "start"
	CommandStop    = "stop"
	CommandRestart = "restart"
)

// Command forwards a control command to the bot. Commands are rejected
// while the circuit breaker is open.
func (p *Proxy) Command(ctx context.Context, action string) error {
	switch action {
	case CommandStart, CommandStop, CommandRestart:
	default:
		return fmt.Errorf("unknown bot command: %s", action)
	}

	if !p.breaker.Allow() {
		return fmt.Errorf("bot is unreachable (circuit breaker open)")
	}

	payload := map[string]string{"action": action}
	if err := p.doJSON(ctx, http.MethodPost, "/control", payload, nil); err != nil {
		p.breaker.RecordFailure(err.Error())
		return fmt.Errorf("bot command %s failed: %w", action, err)
	}
	p.breaker.RecordSuccess()

	p.logger.Info("Bot command sent", "action", action)

	// Refresh status right away so clients see the effect of the command
	go p.poll()

	return nil
}

// BreakerStats exposes the connection breaker's counters
func (p *Proxy) BreakerStats() circuit.Stats {
	return p.breaker.GetStats()
}

// ResetBreaker force-closes the connection breaker
func (p *Proxy) ResetBreaker() {
	p.breaker.ForceReset()
}

func (p *Proxy) doJSON(ctx context.Context, method, path string, payload, dest interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", p.cfg.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bot returned status %d: %s", resp.StatusCode, string(data))
	}

	if dest == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
