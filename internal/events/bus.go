package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventPositionOpened EventType = "POSITION_OPENED"
	EventPositionClosed EventType = "POSITION_CLOSED"
	EventDecision       EventType = "DECISION"
	EventEntryBlocked   EventType = "ENTRY_BLOCKED"
	EventOrderRejected  EventType = "ORDER_REJECTED"
	EventGuardTripped   EventType = "GUARD_TRIPPED"
	EventGuardReset     EventType = "GUARD_RESET"
	EventBotStarted     EventType = "BOT_STARTED"
	EventBotStopped     EventType = "BOT_STOPPED"
	EventCycleError     EventType = "CYCLE_ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
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

// Publish sends an event to all subscribers. Subscribers run in their
// own goroutines so a slow consumer never blocks the decision loop.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishPositionOpened publishes a position opened event
func (eb *EventBus) PublishPositionOpened(symbol, side string, price, size, stopLoss, takeProfit float64, reason string) {
	eb.Publish(Event{
		Type: EventPositionOpened,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"side":        side,
			"price":       price,
			"size":        size,
			"stop_loss":   stopLoss,
			"take_profit": takeProfit,
			"reason":      reason,
		},
	})
}

// PublishPositionClosed publishes a position closed event
func (eb *EventBus) PublishPositionClosed(symbol, side string, positionID int64, entryPrice, exitPrice, plRatio float64, reason string) {
	eb.Publish(Event{
		Type: EventPositionClosed,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"side":        side,
			"position_id": positionID,
			"entry_price": entryPrice,
			"exit_price":  exitPrice,
			"pl_ratio":    plRatio,
			"reason":      reason,
		},
	})
}

// PublishDecision publishes the outcome of one evaluation
func (eb *EventBus) PublishDecision(shouldTrade bool, direction, regime, reason string, confidence float64) {
	eb.Publish(Event{
		Type: EventDecision,
		Data: map[string]interface{}{
			"should_trade": shouldTrade,
			"direction":    direction,
			"regime":       regime,
			"reason":       reason,
			"confidence":   confidence,
		},
	})
}

// PublishEntryBlocked publishes a filtered-out entry with its reason
func (eb *EventBus) PublishEntryBlocked(source, reason string) {
	eb.Publish(Event{
		Type: EventEntryBlocked,
		Data: map[string]interface{}{
			"source": source,
			"reason": reason,
		},
	})
}

// PublishOrderRejected publishes an exchange rejection
func (eb *EventBus) PublishOrderRejected(symbol, side, message string) {
	eb.Publish(Event{
		Type: EventOrderRejected,
		Data: map[string]interface{}{
			"symbol":  symbol,
			"side":    side,
			"message": message,
		},
	})
}

// PublishCycleError publishes a cycle-level failure
func (eb *EventBus) PublishCycleError(stage string, err error) {
	eb.Publish(Event{
		Type: EventCycleError,
		Data: map[string]interface{}{
			"stage": stage,
			"error": err.Error(),
		},
	})
}
