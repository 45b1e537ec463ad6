package rules

import (
	"sync"
	"time"
)

// EventType indicates the category of a room event.
type EventType string

const (
	// Room lifecycle
	EventRoomCreated  EventType = "room_created"
	EventRoomClosed   EventType = "room_closed"
	EventPlayerJoined EventType = "player_joined"
	EventPlayerLeft   EventType = "player_left"
	EventGameStarted  EventType = "game_started"

	// Turn flow
	EventTurnStarted          EventType = "turn_started"
	EventDiceRolled           EventType = "dice_rolled"
	EventRollResolved         EventType = "roll_resolved"
	EventDefenseSubmitted     EventType = "defense_submitted"
	EventDefenseRoundComplete EventType = "defense_round_complete"
	EventZoneTakeover         EventType = "zone_takeover"
	EventCardPurchased        EventType = "card_purchased"
	EventTurnEnded            EventType = "turn_ended"

	// Outcomes
	EventPlayerEliminated EventType = "player_eliminated"
	EventGameOver         EventType = "game_over"

	// Private rejection sent to a single player
	EventError EventType = "error"
)

// Event represents a room state change that other subsystems may react to.
type Event struct {
	Type     EventType
	RoomID   int
	PlayerID string
	// Recipients are the player ids the event is delivered to.
	Recipients []string
	Payload    any
	Timestamp  time.Time
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// Publisher is the sending half of an EventBus.
type Publisher interface {
	Publish(event Event)
}

// EventBus provides a synchronous publish/subscribe implementation.
type EventBus struct {
	mu         sync.RWMutex
	listeners  map[int]Listener
	nextHandle int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
}

// Publish delivers the event to all registered listeners synchronously.
// Listeners run outside the bus lock so they may publish or unsubscribe.
func (bus *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	bus.mu.RLock()
	all := make([]Listener, 0, len(bus.listeners))
	for _, listener := range bus.listeners {
		all = append(all, listener)
	}
	bus.mu.RUnlock()

	for _, listener := range all {
		listener(event)
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, roomID int, playerID string, payload any) Event {
	return Event{
		Type:      eventType,
		RoomID:    roomID,
		PlayerID:  playerID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// NewPrivateEvent creates an event delivered only to the given players.
func NewPrivateEvent(eventType EventType, roomID int, payload any, recipients ...string) Event {
	evt := NewEvent(eventType, roomID, "", payload)
	evt.Recipients = append([]string(nil), recipients...)
	return evt
}
