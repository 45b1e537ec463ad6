package game

import (
	"context"
	"testing"
	"time"

	"github.com/kotgame/kot-server-go/internal/game/cards"
	"github.com/kotgame/kot-server-go/internal/game/dice"
	"github.com/kotgame/kot-server-go/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startActor(t *testing.T, opts ...ActorOption) *Actor {
	t.Helper()
	catalog, err := cards.Default()
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	m := NewMachine(9, DefaultSettings(), catalog, dice.NewScripted(one, two, one, two, energy, heart), nil, logger)
	a := NewActor(m, logger, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-a.Done()
	})
	return a
}

func join(t *testing.T, a *Actor, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, a.Do(context.Background(), func(m *Machine) error {
			return m.Join(id, "Player "+id)
		}))
	}
}

func TestActorSerializesActions(t *testing.T) {
	a := startActor(t)
	join(t, a, "A", "B")
	ctx := context.Background()

	err := a.Apply(ctx, "B", Action{Type: ActionConfirmDice})
	assert.Equal(t, KindNotYourTurn, KindOf(err))

	require.NoError(t, a.Apply(ctx, "A", Action{Type: ActionConfirmDice}))
	snap, err := a.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, rules.PhaseAwaitingDefense, snap.Phase)
}

func TestActorTimeoutAdvancesPhase(t *testing.T) {
	a := startActor(t, WithPhaseTimeout(20*time.Millisecond))
	join(t, a, "A", "B")

	require.Eventually(t, func() bool {
		snap, err := a.Snapshot(context.Background())
		return err == nil && snap.CurrentPlayer == "B"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestActorReportsGameOverOnce(t *testing.T) {
	results := make(chan Result, 2)
	rec := NewReplayRecorder(zaptest.NewLogger(t), t.TempDir())
	a := startActor(t, WithGameOver(func(r Result) { results <- r }), WithReplay(rec))
	join(t, a, "A", "B")
	ctx := context.Background()

	require.NoError(t, a.Do(ctx, func(m *Machine) error { return m.Leave("B") }))

	var res Result
	select {
	case res = <-results:
		assert.Equal(t, "A", res.Winner)
		assert.Equal(t, 9, res.RoomID)
	case <-time.After(2 * time.Second):
		t.Fatal("game over was not reported")
	}

	err := a.Apply(ctx, "A", Action{Type: ActionEndTurn})
	assert.Equal(t, KindWrongPhase, KindOf(err))
	select {
	case <-results:
		t.Fatal("game over reported twice")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Zero(t, rec.Recording())
	replay, err := rec.Load(res.ReplayID)
	require.NoError(t, err)
	assert.Equal(t, res.ReplayID, replay.ID)
	assert.GreaterOrEqual(t, replay.Size(), 3)
}

func TestActorDropsUnfinishedReplay(t *testing.T) {
	rec := NewReplayRecorder(zaptest.NewLogger(t), "")
	a := startActor(t, WithReplay(rec))
	join(t, a, "A", "B")
	assert.Equal(t, 1, rec.Recording())

	a.Stop()
	<-a.Done()
	assert.Zero(t, rec.Recording())
}

func TestActorDoFinishesQueuedWork(t *testing.T) {
	a := startActor(t)
	ctx := context.Background()

	release := make(chan struct{})
	busy := make(chan struct{})
	go a.Do(ctx, func(m *Machine) error {
		close(busy)
		<-release
		return nil
	})
	<-busy

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- a.Do(short, func(m *Machine) error { return m.Join("A", "Alice") })
	}()

	<-short.Done()
	time.Sleep(10 * time.Millisecond)
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("queued work never reported")
	}
	snap, err := a.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Players, 1)
}

func TestActorStopRejectsWork(t *testing.T) {
	a := startActor(t)
	a.Stop()
	<-a.Done()

	err := a.Apply(context.Background(), "A", Action{Type: ActionRollDice})
	assert.ErrorIs(t, err, ErrRoomClosed)
}
