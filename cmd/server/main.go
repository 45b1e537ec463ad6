package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kotgame/kot-server-go/internal/config"
	"github.com/kotgame/kot-server-go/internal/game"
	"github.com/kotgame/kot-server-go/internal/game/cards"
	"github.com/kotgame/kot-server-go/internal/game/rules"
	"github.com/kotgame/kot-server-go/internal/repository"
	"github.com/kotgame/kot-server-go/internal/room"
	"github.com/kotgame/kot-server-go/internal/server"
	"github.com/kotgame/kot-server-go/internal/session"
	"github.com/kotgame/kot-server-go/internal/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting game server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Create context that listens for termination signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal("failed to set up telemetry", zap.Error(err))
	}

	store, err := repository.NewStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open result store", zap.Error(err))
	}
	defer store.Close()

	catalog, err := loadCatalog(cfg.Game.CatalogPath)
	if err != nil {
		logger.Fatal("failed to load card catalog", zap.Error(err))
	}
	logger.Info("card catalog loaded",
		zap.Int("cards", catalog.Len()),
		zap.String("path", cfg.Game.CatalogPath),
	)

	bus := rules.NewEventBus()

	replays := game.NewReplayRecorder(logger, cfg.Game.ReplayDir)
	roomMgr, err := room.NewManager(room.Config{
		Settings: game.Settings{
			RequiredPlayers:    cfg.Game.RequiredPlayers,
			VictoryPointsToWin: cfg.Game.VictoryPointsToWin,
			StartingHP:         cfg.Game.StartingHP,
			MaxRerolls:         cfg.Game.MaxRerolls,
			ZoneBonus:          game.DefaultSettings().ZoneBonus,
			ZoneEntryPoints:    game.DefaultSettings().ZoneEntryPoints,
		},
		PhaseTimeout: cfg.Game.PhaseTimeout,
		IDLimit:      cfg.Game.RoomIDLimit,
		Catalog:      catalog,
		Events:       bus,
		Results:      store,
		Replays:      replays,
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize room manager", zap.Error(err))
	}
	logger.Info("room manager initialized",
		zap.Int("required_players", cfg.Game.RequiredPlayers),
		zap.Duration("phase_timeout", cfg.Game.PhaseTimeout),
	)

	// Initialize session manager
	sessionMgr := session.NewManager(cfg.Server.LeasePeriod, logger)
	logger.Info("session manager initialized",
		zap.Duration("lease_period", cfg.Server.LeasePeriod),
	)
	go sessionMgr.CleanupExpiredSessions(ctx)

	hub := server.NewHub(cfg.Server.WebSocket.PingInterval, cfg.Server.WebSocket.WriteTimeout, logger)
	go hub.Run(ctx)
	broadcaster := server.NewBroadcaster(hub, logger)
	broadcaster.Attach(bus)

	wsServer := server.NewServer(cfg, roomMgr, sessionMgr, store, replays, hub, logger)
	wsDone := make(chan struct{})
	go func() {
		defer close(wsDone)
		if wsErr := wsServer.ListenAndServe(ctx); wsErr != nil {
			logger.Error("WebSocket server error", zap.Error(wsErr))
		}
	}()

	grpcServer, healthServer := server.NewGRPCServer(cfg.Server.GRPC, logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}
	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	logger.Info("game server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	healthServer.Shutdown()
	cancel()
	<-wsDone

	grpcServer.GracefulStop()
	roomMgr.Close()
	broadcaster.Detach()
	sessionMgr.CloseAll()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := shutdownTelemetry(flushCtx); err != nil {
		logger.Warn("telemetry shutdown failed", zap.Error(err))
	}

	logger.Info("game server stopped")
}

func loadCatalog(path string) (*cards.Catalog, error) {
	if path == "" {
		return cards.Default()
	}
	return cards.LoadFile(path)
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
