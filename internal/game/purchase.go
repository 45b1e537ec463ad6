package game

import (
	"github.com/kotgame/kot-server-go/internal/game/cards"
	"github.com/kotgame/kot-server-go/internal/game/effects"
	"github.com/kotgame/kot-server-go/internal/game/rules"
	"go.uber.org/zap"
)

// Purchase describes a resolved card purchase.
type Purchase struct {
	PlayerID      string     `json:"player_id"`
	Card          cards.Card `json:"card"`
	Cost          int        `json:"cost"`
	VictoryPoints int        `json:"victory_points"`
	Hits          []Hit      `json:"hits,omitempty"`
	Healed        int        `json:"healed,omitempty"`
	TookZone      bool       `json:"took_zone,omitempty"`
}

// CardCost returns what p would pay for card after passive discounts.
func CardCost(p *Player, card cards.Card) int {
	return effects.Modify(p.Owned, effects.QueryCardCost, effects.Context{Energy: p.Energy}, card.Cost)
}

func (m *Machine) buyCard(p *Player, title string) error {
	if title == "" {
		return NewError(KindInvalidAction, "card title is required")
	}
	if m.catalog == nil {
		return NewError(KindInvalidAction, "no card catalog loaded")
	}
	card, ok := m.catalog.Lookup(title)
	if !ok {
		return NewError(KindInvalidAction, "unknown card %q", title)
	}
	if card.Kind == cards.KindPassive && p.Owned.Has(card.Title) {
		return NewError(KindInvalidAction, "%s already owns %s", p.Name, card.Title)
	}
	cost := CardCost(p, card)
	if p.Energy < cost {
		return NewError(KindInsufficientEnergy, "%s costs %d energy, %s has %d", card.Title, cost, p.Name, p.Energy)
	}

	// Passive purchase bonuses come from cards owned before this purchase.
	newsBonus := effects.Modify(p.Owned, effects.QueryPurchaseVictoryPoints, effects.Context{}, 0)

	p.Energy -= cost
	purchase := Purchase{PlayerID: p.ID, Card: card, Cost: cost}

	switch card.Kind {
	case cards.KindSelfImmediate:
		purchase.Hits, purchase.Healed = m.applyHP(p, card.HP)
		purchase.VictoryPoints = p.addVictoryPoints(card.VictoryPoints)

	case cards.KindMultiTarget:
		for _, target := range m.room.active() {
			if target == p && card.Targets != cards.TargetAll {
				continue
			}
			hits, _ := m.applyHP(target, card.HP)
			purchase.Hits = append(purchase.Hits, hits...)
			if target != p {
				for _, h := range hits {
					if h.Damage > 0 {
						m.room.dealtDamage = true
					}
				}
			}
		}
		purchase.VictoryPoints = p.addVictoryPoints(card.VictoryPoints)

	case cards.KindZoneSeizing:
		if !p.InZone && p.Active() {
			previous := m.room.occupant()
			if previous != nil {
				previous.InZone = false
			}
			p.InZone = true
			purchase.TookZone = true
			purchase.VictoryPoints = p.addVictoryPoints(card.VictoryPoints)
			payload := ZoneTakeoverPayload{NewOccupant: p.ID, Reason: "card"}
			if previous != nil {
				payload.PreviousOccupant = previous.ID
			}
			m.publish(rules.EventZoneTakeover, p.ID, payload)
		}

	case cards.KindPassive:
		p.Owned.Add(card.Title)
		maxHP := effects.Modify(p.Owned, effects.QueryMaxHP, effects.Context{}, m.settings.StartingHP)
		if grow := maxHP - p.MaxHP; grow > 0 {
			p.MaxHP = maxHP
			purchase.Healed = p.heal(grow)
		}
	}

	purchase.VictoryPoints += p.addVictoryPoints(newsBonus)

	m.logger.Info("card purchased",
		zap.String("player_id", p.ID),
		zap.String("card", card.Title),
		zap.Int("cost", cost),
	)
	m.publish(rules.EventCardPurchased, p.ID, CardPurchasedPayload{
		Purchase: purchase,
		Players:  m.playerSnapshots(),
	})

	if m.checkGameOver() {
		return nil
	}
	if !p.Active() {
		m.passTurn()
	}
	return nil
}

// applyHP applies a signed card hp delta. Card damage is not mitigated.
func (m *Machine) applyHP(p *Player, delta int) ([]Hit, int) {
	switch {
	case delta < 0:
		lost := p.damage(-delta)
		if p.HP == 0 {
			m.eliminate(p)
		}
		return []Hit{{PlayerID: p.ID, Damage: lost, HP: p.HP}}, 0
	case delta > 0:
		return nil, p.heal(delta)
	}
	return nil, 0
}
