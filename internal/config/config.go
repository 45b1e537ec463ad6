package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all server configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Game      GameConfig      `mapstructure:"game"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig configures the network listeners and session leases.
type ServerConfig struct {
	WebSocket   WebSocketConfig `mapstructure:"websocket"`
	GRPC        GRPCConfig      `mapstructure:"grpc"`
	LeasePeriod time.Duration   `mapstructure:"lease_period"`
}

// WebSocketConfig configures the HTTP/WebSocket listener.
type WebSocketConfig struct {
	Address        string        `mapstructure:"address"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

// GRPCConfig configures the gRPC health listener.
type GRPCConfig struct {
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// GameConfig holds the tunable game rules.
type GameConfig struct {
	RequiredPlayers    int           `mapstructure:"required_players"`
	VictoryPointsToWin int           `mapstructure:"victory_points_to_win"`
	StartingHP         int           `mapstructure:"starting_hp"`
	MaxRerolls         int           `mapstructure:"max_rerolls"`
	PhaseTimeout       time.Duration `mapstructure:"phase_timeout"`
	RoomIDLimit        int           `mapstructure:"room_id_limit"`
	CatalogPath        string        `mapstructure:"catalog_path"`
	ReplayDir          string        `mapstructure:"replay_dir"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig selects the finished-game result store.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// TelemetryConfig enables OTLP trace export when an endpoint is set.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

const envPrefix = "KOT"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.websocket.address", ":8080")
	v.SetDefault("server.websocket.allowed_origins", []string{})
	v.SetDefault("server.websocket.ping_interval", 30*time.Second)
	v.SetDefault("server.websocket.write_timeout", 10*time.Second)
	v.SetDefault("server.websocket.send_buffer", 64)
	v.SetDefault("server.grpc.address", ":9090")
	v.SetDefault("server.grpc.max_concurrent_streams", 100)
	v.SetDefault("server.lease_period", 30*time.Second)

	v.SetDefault("game.required_players", 2)
	v.SetDefault("game.victory_points_to_win", 20)
	v.SetDefault("game.starting_hp", 10)
	v.SetDefault("game.max_rerolls", 2)
	v.SetDefault("game.phase_timeout", 60*time.Second)
	v.SetDefault("game.room_id_limit", 100000)
	v.SetDefault("game.catalog_path", "")
	v.SetDefault("game.replay_dir", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.driver", "none")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "kot-server")
}

// Load reads configuration from path (if it exists) and the environment.
// Environment variables use the KOT_ prefix, e.g. KOT_GAME_REQUIRED_PLAYERS.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				var notFound viper.ConfigFileNotFoundError
				if !errors.As(err, &notFound) {
					return nil, fmt.Errorf("read config %s: %w", path, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that configured values are usable.
func (c *Config) Validate() error {
	g := c.Game
	if g.RequiredPlayers < 2 || g.RequiredPlayers > 6 {
		return fmt.Errorf("game.required_players must be between 2 and 6, got %d", g.RequiredPlayers)
	}
	if g.VictoryPointsToWin <= 0 {
		return fmt.Errorf("game.victory_points_to_win must be positive, got %d", g.VictoryPointsToWin)
	}
	if g.StartingHP <= 0 {
		return fmt.Errorf("game.starting_hp must be positive, got %d", g.StartingHP)
	}
	if g.MaxRerolls < 0 {
		return fmt.Errorf("game.max_rerolls must not be negative, got %d", g.MaxRerolls)
	}
	if g.PhaseTimeout < 0 {
		return fmt.Errorf("game.phase_timeout must not be negative, got %s", g.PhaseTimeout)
	}
	if g.RoomIDLimit < 2 {
		return fmt.Errorf("game.room_id_limit must be at least 2, got %d", g.RoomIDLimit)
	}
	if c.Server.LeasePeriod <= 0 {
		return fmt.Errorf("server.lease_period must be positive, got %s", c.Server.LeasePeriod)
	}
	switch c.Database.Driver {
	case "none", "":
	case "postgres", "sqlite":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	return nil
}
