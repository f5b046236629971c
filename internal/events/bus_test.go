package events

import (
	"sync"
	"testing"
	"time"
)

func TestPublishReachesTypeSubscriber(t *testing.T) {
	bus := NewEventBus()

	received := make(chan Event, 1)
	bus.Subscribe(EventTradeClosed, func(e Event) {
		received <- e
	})

	bus.PublishTradeClosed("user-1", "polymarket", "will-it-rain", 12.5, true)

	select {
	case e := <-received:
		if e.Type != EventTradeClosed {
			t.Errorf("Type = %s, want %s", e.Type, EventTradeClosed)
		}
		if e.UserID != "user-1" {
			t.Errorf("UserID = %q, want user-1", e.UserID)
		}
		if e.Data["profit"] != 12.5 {
			t.Errorf("profit = %v, want 12.5", e.Data["profit"])
		}
		if e.Timestamp.IsZero() {
			t.Error("expected timestamp to be set")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received event")
	}
}

func TestPublishSkipsOtherTypes(t *testing.T) {
	bus := NewEventBus()

	received := make(chan Event, 1)
	bus.Subscribe(EventTradeOpened, func(e Event) {
		received <- e
	})

	bus.PublishBotStatus("running", true, "")

	select {
	case <-received:
		t.Fatal("subscriber received event of a different type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := NewEventBus()

	var mu sync.Mutex
	var types []EventType
	done := make(chan struct{}, 2)
	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		types = append(types, e.Type)
		mu.Unlock()
		done <- struct{}{}
	})

	bus.PublishSimulationReset("user-1", "session-1")
	bus.PublishSubscriptionChanged("user-1", "pro", "active")

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("catch-all subscriber missed an event")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(types) != 2 {
		t.Fatalf("received %d events, want 2", len(types))
	}
}

func TestPublishCredentialChanged(t *testing.T) {
	bus := NewEventBus()

	received := make(chan Event, 1)
	bus.Subscribe(EventCredentialChanged, func(e Event) {
		received <- e
	})

	bus.PublishCredentialChanged("user-1", "kalshi", "upsert")

	select {
	case e := <-received:
		if e.UserID != "user-1" {
			t.Errorf("UserID = %q, want user-1", e.UserID)
		}
		if e.Data["exchange"] != "kalshi" {
			t.Errorf("exchange = %v, want kalshi", e.Data["exchange"])
		}
		if e.Data["action"] != "upsert" {
			t.Errorf("action = %v, want upsert", e.Data["action"])
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received event")
	}
}

func TestBroadcastCallbacksIgnoreEmptyUser(t *testing.T) {
	called := make(chan string, 1)
	SetBroadcastTradeUpdate(func(userID string, data interface{}) {
		called <- userID
	})
	defer SetBroadcastTradeUpdate(nil)

	BroadcastTradeUpdate("", map[string]string{"x": "y"})
	select {
	case <-called:
		t.Fatal("broadcast fired for empty user id")
	case <-time.After(50 * time.Millisecond):
	}

	BroadcastTradeUpdate("user-1", map[string]string{"x": "y"})
	select {
	case userID := <-called:
		if userID != "user-1" {
			t.Errorf("userID = %q, want user-1", userID)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast never fired")
	}
}
