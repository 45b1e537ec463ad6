package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/kotgame/kot-server-go/internal/game"
	"github.com/kotgame/kot-server-go/internal/game/cards"
	"github.com/kotgame/kot-server-go/internal/game/dice"
	"github.com/kotgame/kot-server-go/internal/game/rules"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName = "github.com/kotgame/kot-server-go/internal/room"

	// allocateAttempts bounds random id draws before giving up.
	allocateAttempts = 64

	resultTimeout = 5 * time.Second
)

var (
	// ErrNoRoomAvailable is returned when no free room id could be found.
	ErrNoRoomAvailable = errors.New("no room id available")
	// ErrManagerClosed is returned by CreateRoom after Close.
	ErrManagerClosed = errors.New("room manager is closed")
)

// ResultRecorder persists finished games.
type ResultRecorder interface {
	RecordResult(ctx context.Context, result game.Result) error
}

// Config wires a Manager.
type Config struct {
	Settings     game.Settings
	PhaseTimeout time.Duration
	// IDLimit is the exclusive upper bound of room ids.
	IDLimit int
	Catalog *cards.Catalog
	Events  rules.Publisher
	// Results and Replays are optional.
	Results ResultRecorder
	Replays *game.ReplayRecorder
}

// Option customizes a Manager.
type Option func(*Manager)

// WithIDSource replaces the random room id generator. fn returns a value in
// [0, n).
func WithIDSource(fn func(n int) int) Option {
	return func(m *Manager) { m.intn = fn }
}

// WithDiceSource replaces the per-room dice factory.
func WithDiceSource(fn func() (dice.Source, error)) Option {
	return func(m *Manager) { m.newDice = fn }
}

// Summary is a lightweight view of an active room.
type Summary struct {
	ID              int             `json:"id"`
	Phase           rules.TurnPhase `json:"phase"`
	Players         int             `json:"players"`
	RequiredPlayers int             `json:"required_players"`
	CreatedAt       time.Time       `json:"created_at"`
}

type entry struct {
	actor     *game.Actor
	createdAt time.Time
}

// Manager owns the active rooms and routes player operations to them.
type Manager struct {
	rooms  map[int]*entry
	mu     sync.RWMutex
	logger *zap.Logger
	cfg    Config
	tracer trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	// actors counts running room goroutines, results counts pending writes.
	actors  sync.WaitGroup
	results sync.WaitGroup

	intn    func(n int) int
	newDice func() (dice.Source, error)
}

// NewManager creates a room manager. Room actors live until Close.
func NewManager(cfg Config, logger *zap.Logger, opts ...Option) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IDLimit < 2 {
		return nil, fmt.Errorf("room id limit must be at least 2, got %d", cfg.IDLimit)
	}
	if cfg.Catalog == nil {
		catalog, err := cards.Default()
		if err != nil {
			return nil, fmt.Errorf("load card catalog: %w", err)
		}
		cfg.Catalog = catalog
	}
	if cfg.Events == nil {
		cfg.Events = rules.NewEventBus()
	}

	seed, err := dice.NewSeed()
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		rooms:  make(map[int]*entry),
		logger: logger,
		cfg:    cfg,
		tracer: otel.Tracer(tracerName),
		ctx:    ctx,
		cancel: cancel,
		intn:   rng.Intn,
		newDice: func() (dice.Source, error) {
			return dice.NewRandomRoller()
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// allocate reserves a free id in [1, IDLimit). The caller holds m.mu.
func (m *Manager) allocate() (int, error) {
	for attempt := 0; attempt < allocateAttempts; attempt++ {
		id := 1 + m.intn(m.cfg.IDLimit-1)
		if _, taken := m.rooms[id]; !taken {
			return id, nil
		}
		m.logger.Debug("room id collision", zap.Int("room_id", id), zap.Int("attempt", attempt))
	}
	return 0, ErrNoRoomAvailable
}

// CreateRoom opens a new room with the creator as its first player.
func (m *Manager) CreateRoom(ctx context.Context, playerID, playerName string) (int, error) {
	ctx, span := m.tracer.Start(ctx, "room.CreateRoom",
		trace.WithAttributes(attribute.String("player.id", playerID)))
	defer span.End()

	src, err := m.newDice()
	if err != nil {
		return 0, fmt.Errorf("create dice source: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrManagerClosed
	}
	id, err := m.allocate()
	if err != nil {
		m.mu.Unlock()
		m.logger.Warn("room allocation failed", zap.Int("active_rooms", len(m.rooms)))
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	machine := game.NewMachine(id, m.cfg.Settings, m.cfg.Catalog, src, m.cfg.Events, m.logger)
	opts := []game.ActorOption{
		game.WithPhaseTimeout(m.cfg.PhaseTimeout),
		game.WithGameOver(m.recordResult),
	}
	if m.cfg.Replays != nil {
		opts = append(opts, game.WithReplay(m.cfg.Replays))
	}
	actor := game.NewActor(machine, m.logger, opts...)
	m.rooms[id] = &entry{actor: actor, createdAt: time.Now()}
	m.actors.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.actors.Done()
		actor.Run(m.ctx)
	}()
	span.SetAttributes(attribute.Int("room.id", id))

	m.cfg.Events.Publish(rules.NewPrivateEvent(rules.EventRoomCreated, id,
		game.RoomCreatedPayload{RoomID: id, Creator: playerID}, playerID))

	if err := m.join(ctx, id, actor, playerID, playerName); err != nil {
		m.destroy(id, actor)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	m.logger.Info("room created",
		zap.Int("room_id", id),
		zap.String("player_id", playerID),
	)
	return id, nil
}

// JoinRoom seats a player in an existing room.
func (m *Manager) JoinRoom(ctx context.Context, roomID int, playerID, playerName string) error {
	ctx, span := m.tracer.Start(ctx, "room.JoinRoom", trace.WithAttributes(
		attribute.Int("room.id", roomID),
		attribute.String("player.id", playerID),
	))
	defer span.End()

	actor, err := m.get(roomID)
	if err != nil {
		return err
	}
	if err := m.join(ctx, roomID, actor, playerID, playerName); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (m *Manager) join(ctx context.Context, roomID int, actor *game.Actor, playerID, playerName string) error {
	return actor.Do(ctx, func(machine *game.Machine) error {
		// The last player may have left while this join was queued.
		if !m.live(roomID, actor) {
			return game.NewError(game.KindRoomNotFound, "room %d not found", roomID)
		}
		return machine.Join(playerID, playerName)
	})
}

// RouteAction forwards a player action to its room.
func (m *Manager) RouteAction(ctx context.Context, roomID int, playerID string, action game.Action) error {
	ctx, span := m.tracer.Start(ctx, "room.RouteAction", trace.WithAttributes(
		attribute.Int("room.id", roomID),
		attribute.String("player.id", playerID),
		attribute.String("action.type", string(action.Type)),
	))
	defer span.End()

	actor, err := m.get(roomID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := actor.Apply(ctx, playerID, action); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// LeaveRoom removes a player. The room is destroyed once nobody is left.
func (m *Manager) LeaveRoom(ctx context.Context, roomID int, playerID string) error {
	actor, err := m.get(roomID)
	if err != nil {
		return err
	}

	var remaining int
	err = actor.Do(ctx, func(machine *game.Machine) error {
		var err error
		remaining, err = m.leave(machine, roomID, actor, playerID)
		return err
	})
	if err != nil {
		return err
	}

	m.logger.Info("player left room",
		zap.Int("room_id", roomID),
		zap.String("player_id", playerID),
		zap.Int("remaining", remaining),
	)
	if remaining == 0 {
		actor.Stop()
		<-actor.Done()
		m.cfg.Events.Publish(rules.NewPrivateEvent(rules.EventRoomClosed, roomID, nil, playerID))
		m.logger.Info("room closed", zap.Int("room_id", roomID))
	}
	return nil
}

// leave runs on the room's actor. An emptied room is unregistered before
// the actor picks up its next job, so queued joins find it gone.
func (m *Manager) leave(machine *game.Machine, roomID int, actor *game.Actor, playerID string) (int, error) {
	if err := machine.Leave(playerID); err != nil {
		return 0, err
	}
	remaining := machine.Members()
	if remaining == 0 {
		m.unregister(roomID, actor)
	}
	return remaining, nil
}

// Snapshot returns the current state of a room.
func (m *Manager) Snapshot(ctx context.Context, roomID int) (game.RoomSnapshot, error) {
	actor, err := m.get(roomID)
	if err != nil {
		return game.RoomSnapshot{}, err
	}
	return actor.Snapshot(ctx)
}

// ListRooms summarizes every active room, ordered by id.
func (m *Manager) ListRooms(ctx context.Context) []Summary {
	m.mu.RLock()
	ids := make([]int, 0, len(m.rooms))
	actors := make(map[int]*entry, len(m.rooms))
	for id, e := range m.rooms {
		ids = append(ids, id)
		actors[id] = e
	}
	m.mu.RUnlock()
	sort.Ints(ids)

	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		snap, err := actors[id].actor.Snapshot(ctx)
		if err != nil {
			continue
		}
		out = append(out, Summary{
			ID:              id,
			Phase:           snap.Phase,
			Players:         len(snap.Players),
			RequiredPlayers: snap.RequiredPlayers,
			CreatedAt:       actors[id].createdAt,
		})
	}
	return out
}

// ActiveRoomCount returns the number of open rooms.
func (m *Manager) ActiveRoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Close stops every room actor and waits for pending game results to be
// written.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	rooms := len(m.rooms)
	m.rooms = make(map[int]*entry)
	m.mu.Unlock()

	m.cancel()
	m.actors.Wait()
	m.results.Wait()
	m.logger.Info("room manager closed", zap.Int("rooms", rooms))
}

func (m *Manager) get(roomID int) (*game.Actor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.rooms[roomID]
	if !ok {
		return nil, game.NewError(game.KindRoomNotFound, "room %d not found", roomID)
	}
	return e.actor, nil
}

func (m *Manager) live(roomID int, actor *game.Actor) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.rooms[roomID]
	return ok && e.actor == actor
}

func (m *Manager) unregister(roomID int, actor *game.Actor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.rooms[roomID]; ok && e.actor == actor {
		delete(m.rooms, roomID)
	}
}

// destroy unregisters a room and waits for its actor to exit.
func (m *Manager) destroy(roomID int, actor *game.Actor) {
	m.unregister(roomID, actor)
	actor.Stop()
	<-actor.Done()
}

// recordResult is called on the room's actor and must not block it.
func (m *Manager) recordResult(result game.Result) {
	if m.cfg.Results == nil {
		return
	}
	m.results.Add(1)
	go func() {
		defer m.results.Done()
		m.writeResult(result)
	}()
}

func (m *Manager) writeResult(result game.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), resultTimeout)
	defer cancel()
	if err := m.cfg.Results.RecordResult(ctx, result); err != nil {
		m.logger.Error("failed to record game result",
			zap.Int("room_id", result.RoomID),
			zap.Error(err),
		)
		return
	}
	m.logger.Info("game result recorded",
		zap.Int("room_id", result.RoomID),
		zap.String("winner", result.Winner),
	)
}
