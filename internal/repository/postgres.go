package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kotgame/kot-server-go/internal/config"
	"github.com/kotgame/kot-server-go/internal/game"
	"go.uber.org/zap"
)

const pgUniqueViolation = "23505"

// PostgresStore keeps results in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects, pings and applies the schema.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	ddl, err := schema("postgres")
	if err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	stats := pool.Stat()
	logger.Info("database connection pool initialized",
		zap.Int32("total_conns", stats.TotalConns()),
		zap.Int32("idle_conns", stats.IdleConns()),
		zap.Int32("max_conns", stats.MaxConns()),
	)
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// RecordResult inserts one finished game.
func (s *PostgresStore) RecordResult(ctx context.Context, result game.Result) error {
	players, err := json.Marshal(result.Players)
	if err != nil {
		return fmt.Errorf("encode players: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO game_results (room_id, winner, winner_name, turns, players, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		result.RoomID, result.Winner, result.WinnerName, result.Turns, players,
		result.StartedAt.UTC(), result.FinishedAt.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateResult
		}
		return fmt.Errorf("insert game result: %w", err)
	}
	return nil
}

// RecentResults returns the newest results first.
func (s *PostgresStore) RecentResults(ctx context.Context, limit int) ([]game.Result, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT room_id, winner, winner_name, turns, players, started_at, finished_at
		 FROM game_results ORDER BY finished_at DESC, id DESC LIMIT $1`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query game results: %w", err)
	}
	defer rows.Close()

	results := make([]game.Result, 0)
	for rows.Next() {
		var (
			r       game.Result
			players []byte
		)
		if err := rows.Scan(&r.RoomID, &r.Winner, &r.WinnerName, &r.Turns, &players, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan game result: %w", err)
		}
		if err := json.Unmarshal(players, &r.Players); err != nil {
			return nil, fmt.Errorf("decode players: %w", err)
		}
		r.ReplayID = game.ReplayID(r.RoomID, r.StartedAt)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate game results: %w", err)
	}
	return results, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
