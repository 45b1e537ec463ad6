package effects

import (
	"testing"

	"github.com/kotgame/kot-server-go/internal/game/cards"
	"github.com/kotgame/kot-server-go/internal/game/dice"
	"github.com/stretchr/testify/assert"
)

func tally(faces ...dice.Face) dice.Tally {
	var r dice.Roll
	copy(r[:], faces)
	return r.Tally()
}

func TestModify(t *testing.T) {
	tests := []struct {
		name  string
		owned Set
		query Query
		ctx   Context
		base  int
		want  int
	}{
		{"no cards", NewSet(), QueryRollDamage, Context{}, 2, 2},
		{"urbavore zone bonus", NewSet(cards.Urbavore), QueryZoneBonus, Context{}, 2, 3},
		{"gourmet on ones", NewSet(cards.Gourmet), QueryRollVictoryPoints,
			Context{Tally: tally(dice.FaceOne, dice.FaceOne, dice.FaceOne, dice.FaceClaw, dice.FaceClaw, dice.FaceClaw)}, 1, 3},
		{"gourmet without ones", NewSet(cards.Gourmet), QueryRollVictoryPoints,
			Context{Tally: tally(dice.FaceTwo, dice.FaceTwo, dice.FaceTwo, dice.FaceClaw, dice.FaceClaw, dice.FaceClaw)}, 2, 2},
		{"omnivore straight", NewSet(cards.Omnivore), QueryRollVictoryPoints,
			Context{Tally: tally(dice.FaceOne, dice.FaceTwo, dice.FaceThree, dice.FaceClaw, dice.FaceClaw, dice.FaceClaw)}, 0, 2},
		{"complete destruction", NewSet(cards.CompleteDestruction), QueryRollVictoryPoints,
			Context{Tally: tally(dice.FaceOne, dice.FaceTwo, dice.FaceThree, dice.FaceEnergy, dice.FaceHeart, dice.FaceClaw)}, 0, 9},
		{"friend of children", NewSet(cards.FriendOfChildren), QueryEnergyGain, Context{}, 2, 3},
		{"friend of children no gain", NewSet(cards.FriendOfChildren), QueryEnergyGain, Context{}, 0, 0},
		{"solar powered when empty", NewSet(cards.SolarPowered), QueryEnergyGain, Context{Energy: 0}, 0, 1},
		{"solar powered with energy", NewSet(cards.SolarPowered), QueryEnergyGain, Context{Energy: 3}, 0, 0},
		{"regeneration", NewSet(cards.Regeneration), QueryHeal, Context{}, 1, 2},
		{"regeneration no heal", NewSet(cards.Regeneration), QueryHeal, Context{}, 0, 0},
		{"acid attack always", NewSet(cards.AcidAttack), QueryRollDamage, Context{}, 0, 1},
		{"poison quills", NewSet(cards.PoisonQuills), QueryRollDamage,
			Context{Tally: tally(dice.FaceTwo, dice.FaceTwo, dice.FaceTwo, dice.FaceHeart, dice.FaceHeart, dice.FaceHeart)}, 0, 2},
		{"spiked tail needs attack", NewSet(cards.SpikedTail), QueryRollDamage, Context{}, 0, 0},
		{"spiked tail", NewSet(cards.SpikedTail), QueryRollDamage, Context{}, 2, 3},
		{"urbavore damage in zone", NewSet(cards.Urbavore), QueryRollDamage, Context{InZone: true}, 1, 2},
		{"urbavore damage outside", NewSet(cards.Urbavore), QueryRollDamage, Context{}, 1, 1},
		{"armor plating ignores one", NewSet(cards.ArmorPlating), QueryIncomingDamage, Context{}, 1, 0},
		{"armor plating keeps two", NewSet(cards.ArmorPlating), QueryIncomingDamage, Context{}, 2, 2},
		{"alien metabolism floor", NewSet(cards.AlienMetabolism), QueryCardCost, Context{}, 0, 0},
		{"alien metabolism", NewSet(cards.AlienMetabolism), QueryCardCost, Context{}, 4, 3},
		{"news team", NewSet(cards.DedicatedNewsTeam), QueryPurchaseVictoryPoints, Context{}, 2, 3},
		{"even bigger", NewSet(cards.EvenBigger), QueryMaxHP, Context{}, 10, 12},
		{"herbivore", NewSet(cards.Herbivore), QueryEndTurnVictoryPoints, Context{}, 0, 1},
		{"herbivore after damage", NewSet(cards.Herbivore), QueryEndTurnVictoryPoints, Context{DealtDamage: true}, 0, 0},
		{"energy hoarder", NewSet(cards.EnergyHoarder), QueryEndTurnVictoryPoints, Context{Energy: 13}, 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Modify(tt.owned, tt.query, tt.ctx, tt.base))
		})
	}
}

func TestModifyIsPure(t *testing.T) {
	owned := NewSet(cards.AcidAttack, cards.SpikedTail)
	ctx := Context{InZone: true, Energy: 4}
	first := Modify(owned, QueryRollDamage, ctx, 2)
	second := Modify(owned, QueryRollDamage, ctx, 2)
	assert.Equal(t, first, second)
	assert.Equal(t, 4, first)
	assert.Equal(t, []string{cards.AcidAttack, cards.SpikedTail}, owned.Titles())
}

func TestExplainListsAppliedCards(t *testing.T) {
	owned := NewSet(cards.AcidAttack, cards.Gourmet, cards.SpikedTail)
	v, applied := Explain(owned, QueryRollDamage, Context{}, 1)
	assert.Equal(t, 3, v)
	assert.Equal(t, []string{cards.AcidAttack, cards.SpikedTail}, applied)
}

func TestSetIsCaseInsensitive(t *testing.T) {
	s := NewSet("Acid Attack")
	assert.True(t, s.Has("acid attack"))
	assert.False(t, s.Add("ACID ATTACK"))
	assert.Equal(t, []string{"Acid Attack"}, s.Titles())
}
