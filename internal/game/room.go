package game

import (
	"time"

	"github.com/kotgame/kot-server-go/internal/game/dice"
	"github.com/kotgame/kot-server-go/internal/game/rules"
)

// PendingAttack is the damage produced by a resolved roll, waiting for the
// defense round.
type PendingAttack struct {
	Source string `json:"source"`
	Damage int    `json:"damage"`
}

// DefenseChoice is a defender's answer to a pending attack.
type DefenseChoice string

const (
	DefenseHold  DefenseChoice = "endDefending"
	DefenseYield DefenseChoice = "yield"
)

// Room is the state of one game session.
type Room struct {
	ID        int
	Players   []*Player
	Phase     rules.TurnPhase
	Dice      dice.Roll
	Rerolls   int
	Pending   *PendingAttack
	Defense   map[string]DefenseChoice
	Winner    string
	CreatedAt time.Time
	StartedAt time.Time

	order       *rules.TurnOrder
	dealtDamage bool
	rolled      bool
	transitions uint64
}

func newRoom(id int) *Room {
	return &Room{
		ID:        id,
		Phase:     rules.PhaseWaiting,
		CreatedAt: time.Now(),
		order:     rules.NewTurnOrder(),
	}
}

func (r *Room) player(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// member returns a player who has not left.
func (r *Room) member(id string) *Player {
	if p := r.player(id); p != nil && !p.Left {
		return p
	}
	return nil
}

func (r *Room) current() *Player {
	if len(r.Players) == 0 {
		return nil
	}
	return r.Players[r.order.Current()]
}

func (r *Room) occupant() *Player {
	for _, p := range r.Players {
		if p.InZone {
			return p
		}
	}
	return nil
}

func (r *Room) active() []*Player {
	out := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out
}

func (r *Room) activeSeat(seat int) bool {
	return seat >= 0 && seat < len(r.Players) && r.Players[seat].Active()
}

// members counts players who have not left.
func (r *Room) members() int {
	n := 0
	for _, p := range r.Players {
		if !p.Left {
			n++
		}
	}
	return n
}

// awaitingDefense lists active players other than the attacker who have not
// yet submitted a defense this round.
func (r *Room) awaitingDefense() []*Player {
	if r.Pending == nil {
		return nil
	}
	var out []*Player
	for _, p := range r.Players {
		if !p.Active() || p.ID == r.Pending.Source {
			continue
		}
		if _, done := r.Defense[p.ID]; !done {
			out = append(out, p)
		}
	}
	return out
}

func (r *Room) setPhase(phase rules.TurnPhase) {
	r.Phase = phase
	r.transitions++
}

// RoomSnapshot is a read-only copy of a room.
type RoomSnapshot struct {
	ID               int              `json:"id"`
	Phase            rules.TurnPhase  `json:"phase"`
	RequiredPlayers  int              `json:"required_players"`
	CurrentTurnIndex int              `json:"current_turn_index"`
	CurrentPlayer    string           `json:"current_player,omitempty"`
	TurnNumber       int              `json:"turn_number"`
	Occupant         string           `json:"occupant,omitempty"`
	Players          []PlayerSnapshot `json:"players"`
	Dice             []string         `json:"dice,omitempty"`
	RerollsLeft      int              `json:"rerolls_left"`
	PendingAttack    *PendingAttack   `json:"pending_attack,omitempty"`
	Defended         []string         `json:"defended,omitempty"`
	Winner           string           `json:"winner,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

func (r *Room) snapshot(required int) RoomSnapshot {
	s := RoomSnapshot{
		ID:               r.ID,
		Phase:            r.Phase,
		RequiredPlayers:  required,
		CurrentTurnIndex: r.order.Current(),
		TurnNumber:       r.order.TurnNumber(),
		Players:          make([]PlayerSnapshot, 0, len(r.Players)),
		RerollsLeft:      r.Rerolls,
		Winner:           r.Winner,
		CreatedAt:        r.CreatedAt,
	}
	for _, p := range r.Players {
		s.Players = append(s.Players, p.snapshot())
	}
	if r.Phase.InPlay() {
		if cur := r.current(); cur != nil {
			s.CurrentPlayer = cur.ID
		}
	}
	if occ := r.occupant(); occ != nil {
		s.Occupant = occ.ID
	}
	if r.rolled {
		s.Dice = r.Dice.Strings()
	}
	if r.Pending != nil {
		pending := *r.Pending
		s.PendingAttack = &pending
		for _, p := range r.Players {
			if _, ok := r.Defense[p.ID]; ok {
				s.Defended = append(s.Defended, p.ID)
			}
		}
	}
	return s
}
