package game

import (
	"strings"
	"time"

	"github.com/kotgame/kot-server-go/internal/game/cards"
	"github.com/kotgame/kot-server-go/internal/game/dice"
	"github.com/kotgame/kot-server-go/internal/game/effects"
	"github.com/kotgame/kot-server-go/internal/game/rules"
	"go.uber.org/zap"
)

// Settings are the tunable rules of a room.
type Settings struct {
	RequiredPlayers    int
	VictoryPointsToWin int
	StartingHP         int
	MaxRerolls         int
	ZoneBonus          int
	ZoneEntryPoints    int
}

// DefaultSettings returns the standard two-player rules.
func DefaultSettings() Settings {
	return Settings{
		RequiredPlayers:    2,
		VictoryPointsToWin: 20,
		StartingHP:         10,
		MaxRerolls:         2,
		ZoneBonus:          2,
		ZoneEntryPoints:    1,
	}
}

// ActionType names an inbound player action.
type ActionType string

const (
	ActionRollDice     ActionType = "rollDice"
	ActionConfirmDice  ActionType = "confirmDice"
	ActionEndDefending ActionType = "endDefending"
	ActionYield        ActionType = "yield"
	ActionBuyCard      ActionType = "buyCard"
	ActionEndTurn      ActionType = "endTurn"
)

// Action is a player request routed to a room.
type Action struct {
	Type ActionType `json:"type"`
	// Dice optionally echoes the faces the client saw when confirming.
	Dice []string `json:"dice,omitempty"`
	// Keep lists die indexes to keep when rerolling.
	Keep      []int  `json:"keep,omitempty"`
	CardTitle string `json:"card_title,omitempty"`
}

// Machine is the turn state machine of one room. It is not safe for
// concurrent use; an Actor serializes access to it.
type Machine struct {
	room     *Room
	settings Settings
	catalog  *cards.Catalog
	dice     dice.Source
	events   rules.Publisher
	logger   *zap.Logger
	result   *Result
}

// NewMachine creates a room in the waiting phase.
func NewMachine(roomID int, settings Settings, catalog *cards.Catalog, src dice.Source, events rules.Publisher, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = rules.NewEventBus()
	}
	return &Machine{
		room:     newRoom(roomID),
		settings: settings,
		catalog:  catalog,
		dice:     src,
		events:   events,
		logger:   logger.With(zap.Int("room_id", roomID)),
	}
}

// RoomID returns the room identifier.
func (m *Machine) RoomID() int {
	return m.room.ID
}

// Phase returns the current turn phase.
func (m *Machine) Phase() rules.TurnPhase {
	return m.room.Phase
}

// Transitions counts phase changes; it changes whenever a new phase begins.
func (m *Machine) Transitions() uint64 {
	return m.room.transitions
}

// HasPlayer reports whether id is a member who has not left.
func (m *Machine) HasPlayer(id string) bool {
	return m.room.member(id) != nil
}

// Members counts players who have not left.
func (m *Machine) Members() int {
	return m.room.members()
}

// Snapshot returns a copy of the room state.
func (m *Machine) Snapshot() RoomSnapshot {
	return m.room.snapshot(m.settings.RequiredPlayers)
}

// Result returns the outcome once the game is over.
func (m *Machine) Result() (Result, bool) {
	if m.result == nil {
		return Result{}, false
	}
	return *m.result, true
}

// Join seats a player. The game starts when the required count is reached.
func (m *Machine) Join(playerID, name string) error {
	playerID = strings.TrimSpace(playerID)
	name = strings.TrimSpace(name)
	if playerID == "" {
		return NewError(KindInvalidAction, "player id is required")
	}
	if name == "" {
		return NewError(KindInvalidAction, "player name is required")
	}
	if m.room.Phase != rules.PhaseWaiting {
		return NewError(KindRoomAlreadyStarted, "room %d has already started", m.room.ID)
	}
	if m.room.player(playerID) != nil {
		return NewError(KindInvalidAction, "player %s is already in room %d", playerID, m.room.ID)
	}
	if len(m.room.Players) >= m.settings.RequiredPlayers {
		return NewError(KindRoomFull, "room %d is full", m.room.ID)
	}

	p := newPlayer(playerID, name, m.settings.StartingHP)
	m.room.Players = append(m.room.Players, p)
	m.publish(rules.EventPlayerJoined, p.ID, PlayerJoinedPayload{
		Player:          p.snapshot(),
		Seat:            len(m.room.Players) - 1,
		Players:         len(m.room.Players),
		RequiredPlayers: m.settings.RequiredPlayers,
	})
	m.logger.Info("player joined room",
		zap.String("player_id", p.ID),
		zap.String("player_name", p.Name),
		zap.Int("players", len(m.room.Players)),
	)

	if len(m.room.Players) == m.settings.RequiredPlayers {
		m.start()
	}
	return nil
}

func (m *Machine) start() {
	m.room.StartedAt = time.Now()
	m.room.order.Seek(len(m.room.Players), 0, m.room.activeSeat)
	m.logger.Info("game started", zap.Int("players", len(m.room.Players)))
	m.publish(rules.EventGameStarted, "", GameStartedPayload{
		Players:     m.playerSnapshots(),
		FirstPlayer: m.room.current().ID,
	})
	m.beginTurn()
}

// Leave removes a player. Before the game starts the seat is freed; after
// that the player is marked as departed and skipped from then on.
func (m *Machine) Leave(playerID string) error {
	p := m.room.member(playerID)
	if p == nil {
		return NewError(KindPlayerNotInRoom, "player %s is not in room %d", playerID, m.room.ID)
	}

	if m.room.Phase == rules.PhaseWaiting {
		for i, candidate := range m.room.Players {
			if candidate == p {
				m.room.Players = append(m.room.Players[:i:i], m.room.Players[i+1:]...)
				break
			}
		}
		m.publish(rules.EventPlayerLeft, p.ID, PlayerLeftPayload{PlayerID: p.ID, Players: m.room.members()})
		return nil
	}

	wasCurrent := m.room.current() == p
	p.Left = true
	p.InZone = false
	m.publish(rules.EventPlayerLeft, p.ID, PlayerLeftPayload{PlayerID: p.ID, Players: m.room.members()})
	m.logger.Info("player left running game", zap.String("player_id", p.ID))

	if m.room.Phase == rules.PhaseGameOver || m.checkGameOver() {
		return nil
	}

	switch m.room.Phase {
	case rules.PhaseAwaitingRoll, rules.PhaseAwaitingPurchase:
		if wasCurrent {
			m.passTurn()
		}
	case rules.PhaseAwaitingDefense:
		if m.room.Pending != nil && m.room.Pending.Source == p.ID {
			m.room.Pending = nil
			m.room.Defense = nil
			m.passTurn()
			return nil
		}
		delete(m.room.Defense, p.ID)
		if len(m.room.awaitingDefense()) == 0 {
			m.resolveCombat()
		}
	}
	return nil
}

// Apply validates and executes an action. A returned *Error means the room
// is exactly as it was before the call.
func (m *Machine) Apply(playerID string, action Action) error {
	p := m.room.member(playerID)
	if p == nil {
		return NewError(KindPlayerNotInRoom, "player %s is not in room %d", playerID, m.room.ID)
	}

	switch action.Type {
	case ActionRollDice, ActionConfirmDice, ActionBuyCard, ActionEndTurn,
		ActionEndDefending, ActionYield:
	default:
		return NewError(KindInvalidAction, "unknown action %q", action.Type)
	}

	if !m.room.Phase.InPlay() {
		return NewError(KindWrongPhase, "%s not allowed while room is %s", action.Type, m.room.Phase)
	}

	if m.room.Phase == rules.PhaseAwaitingDefense {
		if action.Type != ActionEndDefending && action.Type != ActionYield {
			return NewError(KindWrongPhase, "%s not allowed during defense", action.Type)
		}
		return m.defend(p, DefenseChoice(action.Type))
	}

	if m.room.current() != p {
		return NewError(KindNotYourTurn, "it is %s's turn", m.room.current().Name)
	}

	switch {
	case m.room.Phase == rules.PhaseAwaitingRoll && action.Type == ActionRollDice:
		return m.reroll(p, action.Keep)
	case m.room.Phase == rules.PhaseAwaitingRoll && action.Type == ActionConfirmDice:
		return m.confirmDice(p, action.Dice)
	case m.room.Phase == rules.PhaseAwaitingPurchase && action.Type == ActionBuyCard:
		return m.buyCard(p, action.CardTitle)
	case m.room.Phase == rules.PhaseAwaitingPurchase && action.Type == ActionEndTurn:
		m.endTurn()
		return nil
	}
	return NewError(KindWrongPhase, "%s not allowed while room is %s", action.Type, m.room.Phase)
}

// Timeout auto-resolves the current phase for silent players. It reports
// whether anything changed.
func (m *Machine) Timeout() bool {
	switch m.room.Phase {
	case rules.PhaseAwaitingRoll:
		m.logger.Info("roll timed out", zap.String("player_id", m.room.current().ID))
		m.resolveRoll()
		return true
	case rules.PhaseAwaitingDefense:
		for _, p := range m.room.awaitingDefense() {
			m.room.Defense[p.ID] = DefenseHold
			m.publish(rules.EventDefenseSubmitted, p.ID, DefenseSubmittedPayload{
				PlayerID: p.ID, Choice: DefenseHold, TimedOut: true,
			})
		}
		m.logger.Info("defense timed out")
		m.resolveCombat()
		return true
	case rules.PhaseAwaitingPurchase:
		m.logger.Info("purchase timed out", zap.String("player_id", m.room.current().ID))
		m.endTurn()
		return true
	}
	return false
}

func (m *Machine) beginTurn() {
	r := m.room
	cur := r.current()
	r.Pending = nil
	r.Defense = nil
	r.dealtDamage = false
	r.Dice = dice.RollAll(m.dice)
	r.rolled = true
	r.Rerolls = m.settings.MaxRerolls
	r.setPhase(rules.PhaseAwaitingRoll)

	m.publish(rules.EventTurnStarted, cur.ID, TurnStartedPayload{
		PlayerID:   cur.ID,
		TurnNumber: r.order.TurnNumber(),
		Seat:       r.order.Current(),
	})
	m.publish(rules.EventDiceRolled, cur.ID, DiceRolledPayload{
		PlayerID:    cur.ID,
		Dice:        r.Dice.Strings(),
		RerollsLeft: r.Rerolls,
	})
}

func (m *Machine) reroll(p *Player, keep []int) error {
	if m.room.Rerolls <= 0 {
		return NewError(KindInvalidAction, "no rerolls left")
	}
	next, err := dice.Reroll(m.dice, m.room.Dice, keep)
	if err != nil {
		return NewError(KindInvalidAction, "%v", err)
	}
	m.room.Dice = next
	m.room.Rerolls--
	m.publish(rules.EventDiceRolled, p.ID, DiceRolledPayload{
		PlayerID:    p.ID,
		Dice:        next.Strings(),
		RerollsLeft: m.room.Rerolls,
	})
	return nil
}

func (m *Machine) confirmDice(p *Player, reported []string) error {
	if len(reported) > 0 {
		roll, err := dice.ParseRoll(reported)
		if err != nil {
			return NewError(KindInvalidAction, "%v", err)
		}
		if roll != m.room.Dice {
			return NewError(KindInvalidAction, "reported dice %s do not match server roll %s", roll, m.room.Dice)
		}
	}
	m.resolveRoll()
	return nil
}

func (m *Machine) defend(p *Player, choice DefenseChoice) error {
	r := m.room
	if p.Eliminated {
		return NewError(KindInvalidAction, "eliminated players do not defend")
	}
	if r.Pending != nil && r.Pending.Source == p.ID {
		return NewError(KindInvalidAction, "the attacker does not defend")
	}
	if _, done := r.Defense[p.ID]; done {
		return NewError(KindInvalidAction, "defense already submitted this round")
	}
	if choice == DefenseYield && !p.InZone {
		return NewError(KindInvalidAction, "only the zone occupant can yield")
	}

	r.Defense[p.ID] = choice
	m.publish(rules.EventDefenseSubmitted, p.ID, DefenseSubmittedPayload{PlayerID: p.ID, Choice: choice})

	if len(r.awaitingDefense()) == 0 {
		m.resolveCombat()
	}
	return nil
}

func (m *Machine) endTurn() {
	m.closeTurn(true)
}

// passTurn ends the current turn without end-of-turn effects. It is used
// when the current player drops out mid-turn.
func (m *Machine) passTurn() {
	m.closeTurn(false)
}

func (m *Machine) closeTurn(withBonus bool) {
	r := m.room
	cur := r.current()
	if withBonus && cur.Active() {
		ctx := effects.Context{Energy: cur.Energy, DealtDamage: r.dealtDamage}
		bonus, applied := effects.Explain(cur.Owned, effects.QueryEndTurnVictoryPoints, ctx, 0)
		if gained := cur.addVictoryPoints(bonus); gained > 0 {
			m.logger.Debug("end of turn bonus",
				zap.String("player_id", cur.ID),
				zap.Int("victory_points", gained),
				zap.Strings("cards", applied),
			)
		}
	}
	r.setPhase(rules.PhaseTurnComplete)
	m.publish(rules.EventTurnEnded, cur.ID, TurnEndedPayload{
		PlayerID:   cur.ID,
		TurnNumber: r.order.TurnNumber(),
		Players:    m.playerSnapshots(),
	})
	if m.checkGameOver() {
		return
	}
	m.advance()
}

func (m *Machine) advance() {
	r := m.room
	if _, ok := r.order.Advance(len(r.Players), r.activeSeat); !ok {
		m.finish("")
		return
	}
	m.beginTurn()
}

// checkGameOver ends the game when a player reached the victory threshold
// or at most one active player remains.
func (m *Machine) checkGameOver() bool {
	r := m.room
	if !r.Phase.InPlay() {
		return r.Phase == rules.PhaseGameOver
	}

	active := r.active()
	switch len(active) {
	case 0:
		m.finish("")
		return true
	case 1:
		m.finish(active[0].ID)
		return true
	}

	var winner *Player
	for _, p := range active {
		if p.VictoryPoints < m.settings.VictoryPointsToWin {
			continue
		}
		if winner == nil || p.VictoryPoints > winner.VictoryPoints ||
			(p.VictoryPoints == winner.VictoryPoints && p == r.current()) {
			winner = p
		}
	}
	if winner != nil {
		m.finish(winner.ID)
		return true
	}
	return false
}

func (m *Machine) finish(winnerID string) {
	r := m.room
	r.Winner = winnerID
	r.Pending = nil
	r.Defense = nil
	r.setPhase(rules.PhaseGameOver)

	res := Result{
		RoomID:     r.ID,
		ReplayID:   ReplayID(r.ID, r.StartedAt),
		Winner:     winnerID,
		Turns:      r.order.TurnNumber(),
		Players:    m.playerSnapshots(),
		StartedAt:  r.StartedAt,
		FinishedAt: time.Now(),
	}
	if w := r.player(winnerID); w != nil {
		res.WinnerName = w.Name
	}
	m.result = &res

	m.logger.Info("game over",
		zap.String("winner", winnerID),
		zap.Int("turns", res.Turns),
	)
	m.publish(rules.EventGameOver, winnerID, GameOverPayload{
		Winner:     winnerID,
		WinnerName: res.WinnerName,
		Players:    res.Players,
	})
}

func (m *Machine) eliminate(p *Player) {
	if p.Eliminated {
		return
	}
	p.Eliminated = true
	p.InZone = false
	m.logger.Info("player eliminated", zap.String("player_id", p.ID))
	m.publish(rules.EventPlayerEliminated, p.ID, PlayerEliminatedPayload{PlayerID: p.ID})
}

func (m *Machine) publish(eventType rules.EventType, playerID string, payload any) {
	evt := rules.NewEvent(eventType, m.room.ID, playerID, payload)
	evt.Recipients = m.audience(playerID)
	m.events.Publish(evt)
}

// audience lists current members. A player who just left still receives
// the event about their own departure.
func (m *Machine) audience(playerID string) []string {
	ids := make([]string, 0, len(m.room.Players)+1)
	for _, p := range m.room.Players {
		if !p.Left {
			ids = append(ids, p.ID)
		}
	}
	if playerID != "" && m.room.member(playerID) == nil {
		ids = append(ids, playerID)
	}
	return ids
}

func (m *Machine) playerSnapshots() []PlayerSnapshot {
	out := make([]PlayerSnapshot, 0, len(m.room.Players))
	for _, p := range m.room.Players {
		out = append(out, p.snapshot())
	}
	return out
}
