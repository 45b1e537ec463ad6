// Package effects resolves passive keep-card modifiers.
//
// Modify is a pure lookup: given the cards a player owns, the value being
// computed and a read-only context, it returns the modified value. Nothing is
// attached to player records and no state is changed.
package effects

import (
	"fmt"

	"github.com/kotgame/kot-server-go/internal/game/cards"
	"github.com/kotgame/kot-server-go/internal/game/dice"
)

// Query names a value that passive cards may adjust.
type Query int

const (
	QueryZoneBonus Query = 1 + iota
	QueryRollVictoryPoints
	QueryEnergyGain
	QueryHeal
	QueryRollDamage
	QueryIncomingDamage
	QueryCardCost
	QueryPurchaseVictoryPoints
	QueryMaxHP
	QueryEndTurnVictoryPoints
)

var queryNames = map[Query]string{
	QueryZoneBonus:             "ZONE_BONUS",
	QueryRollVictoryPoints:     "ROLL_VICTORY_POINTS",
	QueryEnergyGain:            "ENERGY_GAIN",
	QueryHeal:                  "HEAL",
	QueryRollDamage:            "ROLL_DAMAGE",
	QueryIncomingDamage:        "INCOMING_DAMAGE",
	QueryCardCost:              "CARD_COST",
	QueryPurchaseVictoryPoints: "PURCHASE_VICTORY_POINTS",
	QueryMaxHP:                 "MAX_HP",
	QueryEndTurnVictoryPoints:  "END_TURN_VICTORY_POINTS",
}

func (q Query) String() string {
	if name, ok := queryNames[q]; ok {
		return name
	}
	return fmt.Sprintf("QUERY_%d", int(q))
}

// Context carries the read-only facts a modifier may inspect.
type Context struct {
	// Tally is the resolved roll, if any.
	Tally dice.Tally
	// InZone is whether the player occupies the zone at this step.
	InZone bool
	// Energy is the player's energy before the value is applied.
	Energy int
	// DealtDamage is whether the player damaged anyone this turn.
	DealtDamage bool
}

type modifier struct {
	card  string
	query Query
	apply func(ctx Context, value int) int
}

// modifiers run in slice order for a given query.
var modifiers = []modifier{
	{cards.Urbavore, QueryZoneBonus, func(_ Context, v int) int { return v + 1 }},

	{cards.Gourmet, QueryRollVictoryPoints, func(ctx Context, v int) int {
		if ctx.Tally.Count(dice.FaceOne) >= 3 {
			return v + 2
		}
		return v
	}},
	{cards.Omnivore, QueryRollVictoryPoints, func(ctx Context, v int) int {
		if ctx.Tally.HasAll(dice.FaceOne, dice.FaceTwo, dice.FaceThree) {
			return v + 2
		}
		return v
	}},
	{cards.CompleteDestruction, QueryRollVictoryPoints, func(ctx Context, v int) int {
		if ctx.Tally.HasAll(dice.FaceOne, dice.FaceTwo, dice.FaceThree, dice.FaceEnergy, dice.FaceHeart, dice.FaceClaw) {
			return v + 9
		}
		return v
	}},

	{cards.FriendOfChildren, QueryEnergyGain, func(_ Context, v int) int {
		if v > 0 {
			return v + 1
		}
		return v
	}},
	{cards.SolarPowered, QueryEnergyGain, func(ctx Context, v int) int {
		if v == 0 && ctx.Energy == 0 {
			return 1
		}
		return v
	}},

	{cards.Regeneration, QueryHeal, func(_ Context, v int) int {
		if v > 0 {
			return v + 1
		}
		return v
	}},

	{cards.AcidAttack, QueryRollDamage, func(_ Context, v int) int { return v + 1 }},
	{cards.PoisonQuills, QueryRollDamage, func(ctx Context, v int) int {
		if ctx.Tally.Count(dice.FaceTwo) >= 3 {
			return v + 2
		}
		return v
	}},
	{cards.SpikedTail, QueryRollDamage, func(_ Context, v int) int {
		if v > 0 {
			return v + 1
		}
		return v
	}},
	{cards.Urbavore, QueryRollDamage, func(ctx Context, v int) int {
		if ctx.InZone && v > 0 {
			return v + 1
		}
		return v
	}},

	{cards.ArmorPlating, QueryIncomingDamage, func(_ Context, v int) int {
		if v == 1 {
			return 0
		}
		return v
	}},

	{cards.AlienMetabolism, QueryCardCost, func(_ Context, v int) int { return v - 1 }},

	{cards.DedicatedNewsTeam, QueryPurchaseVictoryPoints, func(_ Context, v int) int { return v + 1 }},

	{cards.EvenBigger, QueryMaxHP, func(_ Context, v int) int { return v + 2 }},

	{cards.Herbivore, QueryEndTurnVictoryPoints, func(ctx Context, v int) int {
		if !ctx.DealtDamage {
			return v + 1
		}
		return v
	}},
	{cards.EnergyHoarder, QueryEndTurnVictoryPoints, func(ctx Context, v int) int {
		return v + ctx.Energy/6
	}},
}

// Modify returns base adjusted by every owned card that affects q.
// The result is never negative.
func Modify(owned Owned, q Query, ctx Context, base int) int {
	v, _ := Explain(owned, q, ctx, base)
	return v
}

// Explain is Modify that also returns the titles of the cards that changed
// the value, in application order.
func Explain(owned Owned, q Query, ctx Context, base int) (int, []string) {
	v := base
	var applied []string
	if owned != nil {
		for _, m := range modifiers {
			if m.query != q || !owned.Has(m.card) {
				continue
			}
			next := m.apply(ctx, v)
			if next != v {
				applied = append(applied, m.card)
			}
			v = next
		}
	}
	if v < 0 {
		v = 0
	}
	return v, applied
}
