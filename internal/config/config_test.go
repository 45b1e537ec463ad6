package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Game.RequiredPlayers)
	assert.Equal(t, 20, cfg.Game.VictoryPointsToWin)
	assert.Equal(t, 10, cfg.Game.StartingHP)
	assert.Equal(t, 2, cfg.Game.MaxRerolls)
	assert.Equal(t, 100000, cfg.Game.RoomIDLimit)
	assert.Equal(t, 60*time.Second, cfg.Game.PhaseTimeout)
	assert.Equal(t, ":8080", cfg.Server.WebSocket.Address)
	assert.Equal(t, "none", cfg.Database.Driver)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
game:
  required_players: 4
  phase_timeout: 5s
logging:
  level: debug
  format: json
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("KOT_GAME_VICTORY_POINTS_TO_WIN", "12")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Game.RequiredPlayers)
	assert.Equal(t, 5*time.Second, cfg.Game.PhaseTimeout)
	assert.Equal(t, 12, cfg.Game.VictoryPointsToWin)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"too few players", func(c *Config) { c.Game.RequiredPlayers = 1 }},
		{"too many players", func(c *Config) { c.Game.RequiredPlayers = 7 }},
		{"zero victory target", func(c *Config) { c.Game.VictoryPointsToWin = 0 }},
		{"negative rerolls", func(c *Config) { c.Game.MaxRerolls = -1 }},
		{"tiny id range", func(c *Config) { c.Game.RoomIDLimit = 1 }},
		{"postgres without url", func(c *Config) { c.Database.Driver = "postgres" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
