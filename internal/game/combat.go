package game

import (
	"github.com/kotgame/kot-server-go/internal/game/effects"
	"github.com/kotgame/kot-server-go/internal/game/rules"
	"go.uber.org/zap"
)

// Hit records damage dealt to one defender.
type Hit struct {
	PlayerID string `json:"player_id"`
	Damage   int    `json:"damage"`
	HP       int    `json:"hp"`
}

// CombatOutcome summarizes a resolved defense round.
type CombatOutcome struct {
	Attacker    string `json:"attacker"`
	Damage      int    `json:"damage"`
	Hits        []Hit  `json:"hits,omitempty"`
	NewOccupant string `json:"new_occupant,omitempty"`
}

// resolveCombat applies the pending attack once every defender answered.
// Damage is dealt before any change of zone occupancy.
func (m *Machine) resolveCombat() {
	r := m.room
	attack := r.Pending
	if attack == nil {
		return
	}
	attacker := r.player(attack.Source)
	occupant := r.occupant()
	outcome := CombatOutcome{Attacker: attack.Source, Damage: attack.Damage}

	if attack.Damage > 0 && attacker != nil {
		if attacker.InZone {
			for _, p := range r.active() {
				if p != attacker {
					outcome.Hits = append(outcome.Hits, m.hit(p, attack.Damage))
				}
			}
		} else if occupant != nil && occupant != attacker {
			outcome.Hits = append(outcome.Hits, m.hit(occupant, attack.Damage))
		}
	}

	if attacker != nil && attacker.Active() && !attacker.InZone && occupant != nil && occupant != attacker {
		yielded := r.Defense[occupant.ID] == DefenseYield
		if yielded || occupant.Eliminated {
			occupant.InZone = false
			attacker.InZone = true
			attacker.addVictoryPoints(m.settings.ZoneEntryPoints)
			outcome.NewOccupant = attacker.ID
			reason := "yield"
			if !yielded {
				reason = "eliminated"
			}
			m.logger.Debug("zone changed hands",
				zap.String("from", occupant.ID),
				zap.String("to", attacker.ID),
				zap.String("reason", reason),
			)
			m.publish(rules.EventZoneTakeover, attacker.ID, ZoneTakeoverPayload{
				NewOccupant:      attacker.ID,
				PreviousOccupant: occupant.ID,
				Reason:           reason,
			})
		}
	}

	r.Pending = nil
	r.Defense = nil
	m.publish(rules.EventDefenseRoundComplete, attack.Source, DefenseRoundPayload{
		Outcome: outcome,
		Players: m.playerSnapshots(),
	})

	if m.checkGameOver() {
		return
	}
	r.setPhase(rules.PhaseAwaitingPurchase)
}

// hit deals attack damage to one defender after their own mitigation.
func (m *Machine) hit(p *Player, damage int) Hit {
	taken := effects.Modify(p.Owned, effects.QueryIncomingDamage, effects.Context{InZone: p.InZone}, damage)
	lost := p.damage(taken)
	if lost > 0 {
		m.room.dealtDamage = true
	}
	if p.HP == 0 {
		m.eliminate(p)
	}
	return Hit{PlayerID: p.ID, Damage: lost, HP: p.HP}
}
