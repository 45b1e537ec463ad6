package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kotgame/kot-server-go/internal/game"
	"github.com/kotgame/kot-server-go/internal/game/dice"
	"github.com/kotgame/kot-server-go/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type collected struct {
	mu     sync.Mutex
	events []rules.Event
}

func (c *collected) listen(e rules.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collected) types(roomID int) []rules.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []rules.EventType
	for _, e := range c.events {
		if e.RoomID == roomID {
			out = append(out, e.Type)
		}
	}
	return out
}

type resultSink struct {
	results chan game.Result
	err     error
}

func (s *resultSink) RecordResult(_ context.Context, r game.Result) error {
	s.results <- r
	return s.err
}

func sequence(values ...int) func(int) int {
	var mu sync.Mutex
	i := 0
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		v := values[i%len(values)] % n
		i++
		return v
	}
}

func scriptedDice() (dice.Source, error) {
	return dice.NewScripted(dice.FaceOne, dice.FaceTwo, dice.FaceOne, dice.FaceTwo, dice.FaceEnergy, dice.FaceHeart), nil
}

func newTestManager(t *testing.T, cfg Config, opts ...Option) (*Manager, *collected) {
	t.Helper()
	bus := rules.NewEventBus()
	events := &collected{}
	bus.Subscribe(events.listen)

	if cfg.Settings.RequiredPlayers == 0 {
		cfg.Settings = game.DefaultSettings()
	}
	if cfg.IDLimit == 0 {
		cfg.IDLimit = 100000
	}
	cfg.Events = bus
	opts = append([]Option{WithDiceSource(scriptedDice)}, opts...)

	// Result callbacks log from their own goroutines, which may outlive the test.
	m, err := NewManager(cfg, zap.NewNop(), opts...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, events
}

func TestCreateRoomPublishesAndJoins(t *testing.T) {
	m, events := newTestManager(t, Config{})
	ctx := context.Background()

	id, err := m.CreateRoom(ctx, "alice", "Alice")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, id, 1)
	assert.Less(t, id, 100000)
	assert.Equal(t, 1, m.ActiveRoomCount())

	assert.Equal(t, []rules.EventType{rules.EventRoomCreated, rules.EventPlayerJoined}, events.types(id))

	snap, err := m.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rules.PhaseWaiting, snap.Phase)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "alice", snap.Players[0].ID)
}

func TestCreateRoomRejectsEmptyName(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	_, err := m.CreateRoom(context.Background(), "alice", "")
	assert.ErrorIs(t, err, game.ErrInvalidAction)
	assert.Equal(t, 0, m.ActiveRoomCount())
}

func TestRoomIDUniqueUnderCollisions(t *testing.T) {
	m, _ := newTestManager(t, Config{}, WithIDSource(sequence(4, 4, 4, 9)))
	ctx := context.Background()

	first, err := m.CreateRoom(ctx, "a", "A")
	require.NoError(t, err)
	second, err := m.CreateRoom(ctx, "b", "B")
	require.NoError(t, err)

	assert.Equal(t, 5, first)
	assert.Equal(t, 10, second)
}

func TestNoRoomAvailable(t *testing.T) {
	m, _ := newTestManager(t, Config{IDLimit: 2})
	ctx := context.Background()

	id, err := m.CreateRoom(ctx, "a", "A")
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	_, err = m.CreateRoom(ctx, "b", "B")
	assert.True(t, errors.Is(err, ErrNoRoomAvailable))
}

func TestJoinAndRoute(t *testing.T) {
	m, events := newTestManager(t, Config{})
	ctx := context.Background()

	err := m.JoinRoom(ctx, 77, "bob", "Bob")
	assert.ErrorIs(t, err, game.ErrRoomNotFound)

	id, err := m.CreateRoom(ctx, "alice", "Alice")
	require.NoError(t, err)
	require.NoError(t, m.JoinRoom(ctx, id, "bob", "Bob"))
	assert.ErrorIs(t, m.JoinRoom(ctx, id, "carol", "Carol"), game.ErrRoomAlreadyStarted)

	assert.ErrorIs(t, m.RouteAction(ctx, id, "carol", game.Action{Type: game.ActionRollDice}), game.ErrPlayerNotInRoom)
	assert.ErrorIs(t, m.RouteAction(ctx, id, "bob", game.Action{Type: game.ActionConfirmDice}), game.ErrNotYourTurn)
	assert.ErrorIs(t, m.RouteAction(ctx, id+1, "bob", game.Action{Type: game.ActionConfirmDice}), game.ErrRoomNotFound)

	require.NoError(t, m.RouteAction(ctx, id, "alice", game.Action{Type: game.ActionConfirmDice}))
	require.NoError(t, m.RouteAction(ctx, id, "bob", game.Action{Type: game.ActionEndDefending}))

	snap, err := m.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rules.PhaseAwaitingPurchase, snap.Phase)
	assert.Contains(t, events.types(id), rules.EventDefenseRoundComplete)

	rooms := m.ListRooms(ctx)
	require.Len(t, rooms, 1)
	assert.Equal(t, id, rooms[0].ID)
	assert.Equal(t, 2, rooms[0].Players)
}

func TestRoomDestroyedWhenEmpty(t *testing.T) {
	sink := &resultSink{results: make(chan game.Result, 1)}
	m, events := newTestManager(t, Config{Results: sink})
	ctx := context.Background()

	id, err := m.CreateRoom(ctx, "alice", "Alice")
	require.NoError(t, err)
	require.NoError(t, m.JoinRoom(ctx, id, "bob", "Bob"))

	require.NoError(t, m.LeaveRoom(ctx, id, "bob"))
	select {
	case res := <-sink.results:
		assert.Equal(t, "alice", res.Winner)
	case <-time.After(2 * time.Second):
		t.Fatal("result was not recorded")
	}
	assert.Equal(t, 1, m.ActiveRoomCount(), "the winner is still in the room")

	require.NoError(t, m.LeaveRoom(ctx, id, "alice"))
	assert.Equal(t, 0, m.ActiveRoomCount())
	assert.ErrorIs(t, m.LeaveRoom(ctx, id, "alice"), game.ErrRoomNotFound)

	types := events.types(id)
	assert.Equal(t, rules.EventRoomClosed, types[len(types)-1])
}

func TestLeaveWhileWaitingFreesRoom(t *testing.T) {
	replays := game.NewReplayRecorder(zaptest.NewLogger(t), "")
	m, _ := newTestManager(t, Config{Replays: replays})
	ctx := context.Background()

	id, err := m.CreateRoom(ctx, "alice", "Alice")
	require.NoError(t, err)
	assert.Equal(t, 1, replays.Recording())

	require.NoError(t, m.LeaveRoom(ctx, id, "alice"))
	assert.Equal(t, 0, m.ActiveRoomCount())
	assert.Zero(t, replays.Recording())
}

func TestFinishedRoomsKeepNoReplayInMemory(t *testing.T) {
	replays := game.NewReplayRecorder(zaptest.NewLogger(t), "")
	m, _ := newTestManager(t, Config{Replays: replays})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := m.CreateRoom(ctx, "alice", "Alice")
		require.NoError(t, err)
		require.NoError(t, m.JoinRoom(ctx, id, "bob", "Bob"))
		require.NoError(t, m.LeaveRoom(ctx, id, "bob"))
		require.NoError(t, m.LeaveRoom(ctx, id, "alice"))
	}
	assert.Equal(t, 0, m.ActiveRoomCount())
	assert.Zero(t, replays.Recording())
}

func TestJoinQueuedBehindLastLeave(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	ctx := context.Background()

	id, err := m.CreateRoom(ctx, "alice", "Alice")
	require.NoError(t, err)
	actor, err := m.get(id)
	require.NoError(t, err)

	// Run the last leave on the actor without stopping it, as if a join
	// had been queued right behind it.
	require.NoError(t, actor.Do(ctx, func(machine *game.Machine) error {
		remaining, err := m.leave(machine, id, actor, "alice")
		assert.Zero(t, remaining)
		return err
	}))
	assert.Equal(t, 0, m.ActiveRoomCount())

	err = m.join(ctx, id, actor, "bob", "Bob")
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
	snap, err := actor.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Players)
}

type slowSink struct {
	mu       sync.Mutex
	recorded []game.Result
}

func (s *slowSink) RecordResult(_ context.Context, r game.Result) error {
	time.Sleep(100 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, r)
	return nil
}

func TestCloseWaitsForResults(t *testing.T) {
	sink := &slowSink{}
	m, _ := newTestManager(t, Config{Results: sink})
	ctx := context.Background()

	id, err := m.CreateRoom(ctx, "alice", "Alice")
	require.NoError(t, err)
	require.NoError(t, m.JoinRoom(ctx, id, "bob", "Bob"))
	require.NoError(t, m.LeaveRoom(ctx, id, "bob"))

	m.Close()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.recorded, 1)
	assert.Equal(t, "alice", sink.recorded[0].Winner)

	_, err = m.CreateRoom(ctx, "carol", "Carol")
	assert.ErrorIs(t, err, ErrManagerClosed)
}
