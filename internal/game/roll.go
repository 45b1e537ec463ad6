package game

import (
	"fmt"
	"strings"

	"github.com/kotgame/kot-server-go/internal/game/dice"
	"github.com/kotgame/kot-server-go/internal/game/effects"
	"github.com/kotgame/kot-server-go/internal/game/rules"
	"go.uber.org/zap"
)

// RollReport describes how a confirmed roll changed the roller.
type RollReport struct {
	PlayerID      string   `json:"player_id"`
	Dice          []string `json:"dice"`
	ZoneBonus     int      `json:"zone_bonus"`
	VictoryPoints int      `json:"victory_points"`
	Energy        int      `json:"energy"`
	Healed        int      `json:"healed"`
	Damage        int      `json:"damage"`
	EnteredZone   bool     `json:"entered_zone"`
	Cards         []string `json:"cards,omitempty"`
	Message       string   `json:"message"`
}

// resolveRoll applies the current dice to the current player in fixed order:
// zone bonus, triplets, energy, heal, damage, zone entry. It then opens the
// defense round.
func (m *Machine) resolveRoll() {
	r := m.room
	p := r.current()
	tally := r.Dice.Tally()
	report := RollReport{PlayerID: p.ID, Dice: r.Dice.Strings()}
	ctx := effects.Context{Tally: tally, InZone: p.InZone, Energy: p.Energy}

	note := func(applied []string) {
		report.Cards = append(report.Cards, applied...)
	}

	if p.InZone {
		bonus, applied := effects.Explain(p.Owned, effects.QueryZoneBonus, ctx, m.settings.ZoneBonus)
		report.ZoneBonus = p.addVictoryPoints(bonus)
		note(applied)
	}

	points, applied := effects.Explain(p.Owned, effects.QueryRollVictoryPoints, ctx, tally.TripletPoints())
	report.VictoryPoints = p.addVictoryPoints(points)
	note(applied)

	energy, applied := effects.Explain(p.Owned, effects.QueryEnergyGain, ctx, tally.Count(dice.FaceEnergy))
	p.Energy += energy
	report.Energy = energy
	note(applied)

	if !p.InZone {
		heal, applied := effects.Explain(p.Owned, effects.QueryHeal, ctx, tally.Count(dice.FaceHeart))
		report.Healed = p.heal(heal)
		note(applied)
	}

	damage, applied := effects.Explain(p.Owned, effects.QueryRollDamage, ctx, tally.Count(dice.FaceClaw))
	note(applied)

	if damage > 0 && r.occupant() == nil {
		p.InZone = true
		damage = 0
		report.EnteredZone = true
		p.addVictoryPoints(m.settings.ZoneEntryPoints)
	}
	report.Damage = damage
	report.Message = rollMessage(p, report, m.settings.ZoneEntryPoints)

	r.Pending = &PendingAttack{Source: p.ID, Damage: damage}
	r.Defense = make(map[string]DefenseChoice)
	r.setPhase(rules.PhaseAwaitingDefense)

	m.logger.Debug("roll resolved",
		zap.String("player_id", p.ID),
		zap.Strings("dice", report.Dice),
		zap.Int("damage", damage),
		zap.Bool("entered_zone", report.EnteredZone),
	)
	if report.EnteredZone {
		m.publish(rules.EventZoneTakeover, p.ID, ZoneTakeoverPayload{NewOccupant: p.ID, Reason: "roll"})
	}
	m.publish(rules.EventRollResolved, p.ID, RollResolvedPayload{
		Report:  report,
		Players: m.playerSnapshots(),
	})

	if m.checkGameOver() {
		return
	}
	if len(r.awaitingDefense()) == 0 {
		m.resolveCombat()
	}
}

func rollMessage(p *Player, report RollReport, entryPoints int) string {
	var parts []string
	if report.ZoneBonus > 0 {
		parts = append(parts, fmt.Sprintf("+%d VP for holding the zone", report.ZoneBonus))
	}
	if report.VictoryPoints > 0 {
		parts = append(parts, fmt.Sprintf("+%d VP from dice", report.VictoryPoints))
	}
	if report.Energy > 0 {
		parts = append(parts, fmt.Sprintf("+%d energy", report.Energy))
	}
	if report.Healed > 0 {
		parts = append(parts, fmt.Sprintf("healed %d", report.Healed))
	}
	if report.EnteredZone {
		parts = append(parts, fmt.Sprintf("entered the zone (+%d VP)", entryPoints))
	}
	if report.Damage > 0 {
		parts = append(parts, fmt.Sprintf("attacks for %d", report.Damage))
	}
	if len(parts) == 0 {
		parts = append(parts, "no effect")
	}
	return fmt.Sprintf("%s rolled %s: %s", p.Name, strings.Join(report.Dice, " "), strings.Join(parts, ", "))
}
