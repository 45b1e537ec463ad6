package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kotgame/kot-server-go/internal/game/rules"
	"github.com/kotgame/kot-server-go/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBroadcasterDeliversToRecipients(t *testing.T) {
	logger := zaptest.NewLogger(t)
	hub := NewHub(time.Second, time.Second, logger)
	sessions := session.NewManager(time.Minute, logger)

	alice := &Client{hub: hub, send: make(chan []byte, 4), session: sessions.CreateSession("127.0.0.1")}
	bob := &Client{hub: hub, send: make(chan []byte, 4), session: sessions.CreateSession("127.0.0.1")}
	require.True(t, hub.add(alice))
	require.True(t, hub.add(bob))

	bus := rules.NewEventBus()
	broadcaster := NewBroadcaster(hub, logger)
	broadcaster.Attach(bus)

	bus.Publish(rules.NewPrivateEvent(rules.EventRoomCreated, 7, map[string]int{"room_id": 7}, alice.session.ID, "ghost"))
	require.Len(t, alice.send, 1)
	assert.Len(t, bob.send, 0)

	var msg received
	require.NoError(t, json.Unmarshal(<-alice.send, &msg))
	assert.Equal(t, string(rules.EventRoomCreated), msg.Type)
	assert.Equal(t, 7, msg.RoomID)

	// Events without recipients go nowhere.
	bus.Publish(rules.NewEvent(rules.EventTurnStarted, 7, alice.session.ID, nil))
	assert.Len(t, alice.send, 0)
	assert.Len(t, bob.send, 0)

	broadcaster.Detach()
	bus.Publish(rules.NewPrivateEvent(rules.EventRoomClosed, 7, nil, alice.session.ID))
	assert.Len(t, alice.send, 0)
	broadcaster.Detach()
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	logger := zaptest.NewLogger(t)
	hub := NewHub(time.Second, time.Second, logger)
	sessions := session.NewManager(time.Minute, logger)
	c := &Client{hub: hub, send: make(chan []byte, 1), session: sessions.CreateSession("127.0.0.1")}
	require.True(t, hub.add(c))

	assert.True(t, hub.SendTo(c.session.ID, []byte("one")))
	assert.False(t, hub.SendTo(c.session.ID, []byte("two")))
	assert.False(t, hub.SendTo("nobody", []byte("three")))

	assert.True(t, hub.remove(c))
	assert.False(t, hub.remove(c))
	assert.Equal(t, 0, hub.Connected())
}
