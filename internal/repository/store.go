// Package repository persists finished games.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/kotgame/kot-server-go/internal/config"
	"github.com/kotgame/kot-server-go/internal/game"
	"go.uber.org/zap"
)

//go:embed schema/*.sql
var schemaFS embed.FS

const defaultRecentLimit = 20

// ErrDuplicateResult is returned when a game was already recorded.
var ErrDuplicateResult = errors.New("game result already recorded")

// Store records finished games.
type Store interface {
	RecordResult(ctx context.Context, result game.Result) error
	// RecentResults returns up to limit results, newest first.
	RecentResults(ctx context.Context, limit int) ([]game.Result, error)
	Close() error
}

// NewStore opens the store selected by cfg.Driver.
func NewStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "", "none":
		logger.Info("result store disabled")
		return nopStore{}, nil
	case "postgres":
		return NewPostgresStore(ctx, cfg, logger)
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.URL, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func schema(name string) (string, error) {
	b, err := schemaFS.ReadFile("schema/" + name + ".sql")
	if err != nil {
		return "", fmt.Errorf("read %s schema: %w", name, err)
	}
	return string(b), nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return defaultRecentLimit
	}
	return limit
}

type nopStore struct{}

func (nopStore) RecordResult(context.Context, game.Result) error { return nil }

func (nopStore) RecentResults(context.Context, int) ([]game.Result, error) {
	return []game.Result{}, nil
}

func (nopStore) Close() error { return nil }
