package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kotgame/kot-server-go/internal/config"
	"github.com/kotgame/kot-server-go/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testResult(roomID int, finished time.Time) game.Result {
	return game.Result{
		RoomID:     roomID,
		Winner:     "alice",
		WinnerName: "Alice",
		Turns:      7,
		Players: []game.PlayerSnapshot{
			{ID: "alice", Name: "Alice", HP: 4, MaxHP: 10, VictoryPoints: 20, OwnedCards: []string{"Armor Plating"}},
			{ID: "bob", Name: "Bob", HP: 0, MaxHP: 10, Eliminated: true, OwnedCards: []string{}},
		},
		StartedAt:  finished.Add(-10 * time.Minute),
		FinishedAt: finished,
	}
}

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.db")
	store, err := NewSQLiteStore(context.Background(), path, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteRecordAndList(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordResult(ctx, testResult(1, base)))
	require.NoError(t, store.RecordResult(ctx, testResult(2, base.Add(time.Hour))))

	results, err := store.RecentResults(ctx, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].RoomID, "newest first")
	assert.Equal(t, 1, results[1].RoomID)

	got := results[1]
	assert.Equal(t, "Alice", got.WinnerName)
	assert.Equal(t, 7, got.Turns)
	assert.True(t, base.Equal(got.FinishedAt))
	assert.Equal(t, game.ReplayID(1, base.Add(-10*time.Minute)), got.ReplayID)
	require.Len(t, got.Players, 2)
	assert.True(t, got.Players[1].Eliminated)
	assert.Equal(t, []string{"Armor Plating"}, got.Players[0].OwnedCards)

	limited, err := store.RecentResults(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteDuplicateResult(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()
	res := testResult(3, time.Now())

	require.NoError(t, store.RecordResult(ctx, res))
	assert.ErrorIs(t, store.RecordResult(ctx, res), ErrDuplicateResult)
}

func TestNewStoreDrivers(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	store, err := NewStore(ctx, config.DatabaseConfig{Driver: "none"}, logger)
	require.NoError(t, err)
	assert.NoError(t, store.RecordResult(ctx, testResult(1, time.Now())))
	results, err := store.RecentResults(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	path := filepath.Join(t.TempDir(), "kot.db")
	store, err = NewStore(ctx, config.DatabaseConfig{Driver: "sqlite", URL: path}, logger)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close())

	_, err = NewStore(ctx, config.DatabaseConfig{Driver: "mysql"}, logger)
	assert.Error(t, err)
}
