package game

import (
	"math/rand"
	"testing"

	"github.com/kotgame/kot-server-go/internal/game/cards"
	"github.com/kotgame/kot-server-go/internal/game/dice"
	"github.com/kotgame/kot-server-go/internal/game/rules"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// checkInvariants verifies the rules that must hold between any two actions.
func checkInvariants(t *testing.T, m *Machine, prevVP map[string]int) {
	t.Helper()
	snap := m.Snapshot()

	occupants := 0
	for _, p := range snap.Players {
		if p.InZone {
			occupants++
			require.False(t, p.Eliminated, "eliminated player %s holds the zone", p.ID)
		}
		require.GreaterOrEqual(t, p.HP, 0)
		require.LessOrEqual(t, p.HP, p.MaxHP)
		require.GreaterOrEqual(t, p.Energy, 0)
		require.GreaterOrEqual(t, p.VictoryPoints, prevVP[p.ID], "victory points of %s went down", p.ID)
		prevVP[p.ID] = p.VictoryPoints
		if p.HP == 0 {
			require.True(t, p.Eliminated, "player %s at 0 hp is still active", p.ID)
		}
	}
	require.LessOrEqual(t, occupants, 1, "zone held by %d players", occupants)

	if snap.Phase.InPlay() {
		require.GreaterOrEqual(t, snap.CurrentTurnIndex, 0)
		require.Less(t, snap.CurrentTurnIndex, len(snap.Players))
		cur := m.room.current()
		require.True(t, cur.Active(), "current player %s is out", cur.ID)
	}
	if snap.Phase == rules.PhaseAwaitingDefense {
		require.NotNil(t, snap.PendingAttack)
	}
}

func TestRandomPlayKeepsInvariants(t *testing.T) {
	catalog, err := cards.Default()
	require.NoError(t, err)
	titles := make([]string, 0, catalog.Len())
	for _, c := range catalog.All() {
		titles = append(titles, c.Title)
	}
	actions := []ActionType{
		ActionRollDice, ActionConfirmDice, ActionEndDefending,
		ActionYield, ActionBuyCard, ActionEndTurn,
	}

	for seed := int64(1); seed <= 25; seed++ {
		rng := rand.New(rand.NewSource(seed))
		settings := DefaultSettings()
		settings.RequiredPlayers = 2 + int(seed%3)
		m := NewMachine(int(seed), settings, catalog, dice.NewRoller(seed), nil, zap.NewNop())
		ids := []string{"A", "B", "C", "D"}[:settings.RequiredPlayers]
		for _, id := range ids {
			require.NoError(t, m.Join(id, id))
		}

		prevVP := make(map[string]int)
		for step := 0; step < 400 && m.Phase() != rules.PhaseGameOver; step++ {
			action := Action{Type: actions[rng.Intn(len(actions))]}
			switch action.Type {
			case ActionBuyCard:
				action.CardTitle = titles[rng.Intn(len(titles))]
				// keep purchases affordable often enough to matter
				m.room.current().Energy += rng.Intn(3)
			case ActionRollDice:
				action.Keep = []int{rng.Intn(dice.Count)}
			}
			playerID := ids[rng.Intn(len(ids))]

			before := m.Snapshot().Checksum()
			if err := m.Apply(playerID, action); err != nil {
				require.IsType(t, &Error{}, err)
				require.Equal(t, before, m.Snapshot().Checksum(), "rejected %s by %s changed state", action.Type, playerID)
			}
			checkInvariants(t, m, prevVP)

			if rng.Intn(50) == 0 {
				m.Timeout()
				checkInvariants(t, m, prevVP)
			}
		}
	}
}
