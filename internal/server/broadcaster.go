package server

import (
	"encoding/json"

	"github.com/kotgame/kot-server-go/internal/game/rules"
	"go.uber.org/zap"
)

// Broadcaster fans room events out to the connections of their recipients.
// It runs on the publishing room goroutine and never blocks.
type Broadcaster struct {
	hub    *Hub
	logger *zap.Logger

	bus    *rules.EventBus
	handle int
}

// NewBroadcaster creates a broadcaster delivering through hub.
func NewBroadcaster(hub *Hub, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{hub: hub, logger: logger}
}

// Attach subscribes the broadcaster to bus.
func (b *Broadcaster) Attach(bus *rules.EventBus) {
	b.bus = bus
	b.handle = bus.Subscribe(b.Deliver)
}

// Detach stops delivery. Events published afterwards are dropped.
func (b *Broadcaster) Detach() {
	if b.bus == nil {
		return
	}
	b.bus.Unsubscribe(b.handle)
	b.bus = nil
}

// Deliver sends one event to every recipient that is connected.
func (b *Broadcaster) Deliver(evt rules.Event) {
	if len(evt.Recipients) == 0 {
		return
	}
	data, err := json.Marshal(eventMessage(evt))
	if err != nil {
		b.logger.Error("failed to encode event",
			zap.String("type", string(evt.Type)),
			zap.Int("room_id", evt.RoomID),
			zap.Error(err),
		)
		return
	}
	delivered := 0
	for _, id := range evt.Recipients {
		if b.hub.SendTo(id, data) {
			delivered++
		}
	}
	b.logger.Debug("event broadcast",
		zap.String("type", string(evt.Type)),
		zap.Int("room_id", evt.RoomID),
		zap.Int("recipients", len(evt.Recipients)),
		zap.Int("delivered", delivered),
	)
}
