package game

import "github.com/kotgame/kot-server-go/internal/game/effects"

// Player is a participant's mutable game state. It is owned by a Machine and
// must only be touched from that machine's goroutine.
type Player struct {
	ID            string
	Name          string
	HP            int
	MaxHP         int
	VictoryPoints int
	Energy        int
	InZone        bool
	Owned         effects.Set
	Eliminated    bool
	Left          bool
}

func newPlayer(id, name string, hp int) *Player {
	return &Player{
		ID:    id,
		Name:  name,
		HP:    hp,
		MaxHP: hp,
		Owned: effects.NewSet(),
	}
}

// Active reports whether the player still takes turns and defends.
func (p *Player) Active() bool {
	return !p.Eliminated && !p.Left
}

// damage lowers hp by n, clamped at 0, and returns the hp lost.
func (p *Player) damage(n int) int {
	if n <= 0 {
		return 0
	}
	if n > p.HP {
		n = p.HP
	}
	p.HP -= n
	return n
}

// heal raises hp by n, clamped at MaxHP, and returns the hp gained.
func (p *Player) heal(n int) int {
	if n <= 0 {
		return 0
	}
	if room := p.MaxHP - p.HP; n > room {
		n = room
	}
	p.HP += n
	return n
}

// addVictoryPoints never lowers the total.
func (p *Player) addVictoryPoints(n int) int {
	if n <= 0 {
		return 0
	}
	p.VictoryPoints += n
	return n
}

// PlayerSnapshot is a read-only copy of a player.
type PlayerSnapshot struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	HP            int      `json:"hp"`
	MaxHP         int      `json:"max_hp"`
	VictoryPoints int      `json:"victory_points"`
	Energy        int      `json:"energy"`
	InZone        bool     `json:"in_zone"`
	OwnedCards    []string `json:"owned_cards"`
	Eliminated    bool     `json:"eliminated"`
	Left          bool     `json:"left"`
}

func (p *Player) snapshot() PlayerSnapshot {
	return PlayerSnapshot{
		ID:            p.ID,
		Name:          p.Name,
		HP:            p.HP,
		MaxHP:         p.MaxHP,
		VictoryPoints: p.VictoryPoints,
		Energy:        p.Energy,
		InZone:        p.InZone,
		OwnedCards:    p.Owned.Titles(),
		Eliminated:    p.Eliminated,
		Left:          p.Left,
	}
}
