package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTradeOpened         EventType = "TRADE_OPENED"
	EventTradeClosed         EventType = "TRADE_CLOSED"
	EventSimulationReset     EventType = "SIMULATION_RESET"
	EventBacktestCompleted   EventType = "BACKTEST_COMPLETED"
	EventBotStatusUpdate     EventType = "BOT_STATUS_UPDATE"
	EventWebhookReceived     EventType = "WEBHOOK_RECEIVED"
	EventSubscriptionChanged EventType = "SUBSCRIPTION_CHANGED"
	EventConfigChanged       EventType = "CONFIG_CHANGED"
	EventCredentialChanged   EventType = "CREDENTIAL_CHANGED"
	EventUserLogout          EventType = "USER_LOGOUT"
	EventError               EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	UserID    string                 `json:"user_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Subscribers run in goroutines so a slow consumer never blocks
	// the publisher.
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishTradeOpened publishes a trade opened event
func (eb *EventBus) PublishTradeOpened(userID, platform, strategy, symbol, side string, size float64) {
	eb.Publish(Event{
		Type:   EventTradeOpened,
		UserID: userID,
		Data: map[string]interface{}{
			"platform": platform,
			"strategy": strategy,
			"symbol":   symbol,
			"side":     side,
			"size":     size,
		},
	})
}

// PublishTradeClosed publishes a trade closed event
func (eb *EventBus) PublishTradeClosed(userID, platform, symbol string, profit float64, win bool) {
	eb.Publish(Event{
		Type:   EventTradeClosed,
		UserID: userID,
		Data: map[string]interface{}{
			"platform": platform,
			"symbol":   symbol,
			"profit":   profit,
			"win":      win,
		},
	})
}

// PublishSimulationReset publishes a simulation reset event
func (eb *EventBus) PublishSimulationReset(userID, sessionID string) {
	eb.Publish(Event{
		Type:   EventSimulationReset,
		UserID: userID,
		Data: map[string]interface{}{
			"session_id": sessionID,
		},
	})
}

// PublishBacktestCompleted publishes a backtest completed event
func (eb *EventBus) PublishBacktestCompleted(userID, strategy string, days int, totalProfit float64) {
	eb.Publish(Event{
		Type:   EventBacktestCompleted,
		UserID: userID,
		Data: map[string]interface{}{
			"strategy":     strategy,
			"days":         days,
			"total_profit": totalProfit,
		},
	})
}

// PublishBotStatus publishes a bot status update event
func (eb *EventBus) PublishBotStatus(status string, healthy bool, detail string) {
	data := map[string]interface{}{
		"status":  status,
		"healthy": healthy,
	}
	if detail != "" {
		data["detail"] = detail
	}
	eb.Publish(Event{
		Type: EventBotStatusUpdate,
		Data: data,
	})
}

// PublishWebhookReceived publishes a webhook received event
func (eb *EventBus) PublishWebhookReceived(strategy, symbol, action string) {
	eb.Publish(Event{
		Type: EventWebhookReceived,
		Data: map[string]interface{}{
			"strategy": strategy,
			"symbol":   symbol,
			"action":   action,
		},
	})
}

// PublishSubscriptionChanged publishes a subscription change event
func (eb *EventBus) PublishSubscriptionChanged(userID, tier, status string) {
	eb.Publish(Event{
		Type:   EventSubscriptionChanged,
		UserID: userID,
		Data: map[string]interface{}{
			"tier":   tier,
			"status": status,
		},
	})
}

// PublishCredentialChanged publishes a credential change event
func (eb *EventBus) PublishCredentialChanged(userID, exchange, action string) {
	eb.Publish(Event{
		Type:   EventCredentialChanged,
		UserID: userID,
		Data: map[string]interface{}{
			"exchange": exchange,
			"action":   action,
		},
	})
}

// PublishConfigChanged publishes a config change event
func (eb *EventBus) PublishConfigChanged(userID, key string) {
	eb.Publish(Event{
		Type:   EventConfigChanged,
		UserID: userID,
		Data: map[string]interface{}{
			"key": key,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}

// ============================================================================
// WebSocket broadcast callbacks. These let packages like botproxy and
// billing push to connected clients without importing the api package,
// avoiding import cycles.
// ============================================================================

// BroadcastFunc is a callback for broadcasting events to specific users.
// An empty userID broadcasts to all connected clients.
type BroadcastFunc func(userID string, data interface{})

// Global broadcast callbacks - wired up by the api package at startup
var (
	broadcastBotStatus    BroadcastFunc
	broadcastTradeUpdate  BroadcastFunc
	broadcastSubscription BroadcastFunc
)

// SetBroadcastBotStatus sets the callback for bot status broadcasts
func SetBroadcastBotStatus(fn BroadcastFunc) {
	broadcastBotStatus = fn
}

// SetBroadcastTradeUpdate sets the callback for trade update broadcasts
func SetBroadcastTradeUpdate(fn BroadcastFunc) {
	broadcastTradeUpdate = fn
}

// SetBroadcastSubscription sets the callback for subscription broadcasts
func SetBroadcastSubscription(fn BroadcastFunc) {
	broadcastSubscription = fn
}

// BroadcastBotStatus broadcasts bot status to all connected clients
func BroadcastBotStatus(data interface{}) {
	if broadcastBotStatus != nil {
		go broadcastBotStatus("", data)
	}
}

// BroadcastTradeUpdate broadcasts a trade update to a user
func BroadcastTradeUpdate(userID string, data interface{}) {
	if broadcastTradeUpdate != nil && userID != "" {
		go broadcastTradeUpdate(userID, data)
	}
}

// BroadcastSubscription broadcasts a subscription change to a user
func BroadcastSubscription(userID string, data interface{}) {
	if broadcastSubscription != nil && userID != "" {
		go broadcastSubscription(userID, data)
	}
}
