package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kotgame/kot-server-go/internal/game"
	"go.uber.org/zap"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLiteStore keeps results in a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens path and applies the schema.
func NewSQLiteStore(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	ddl, err := schema("sqlite")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("sqlite result store opened", zap.String("path", path))
	return &SQLiteStore{db: db, logger: logger}, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// RecordResult inserts one finished game.
func (s *SQLiteStore) RecordResult(ctx context.Context, result game.Result) error {
	players, err := json.Marshal(result.Players)
	if err != nil {
		return fmt.Errorf("encode players: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO game_results (room_id, winner, winner_name, turns, players, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.RoomID, result.Winner, result.WinnerName, result.Turns, string(players),
		toMillis(result.StartedAt), toMillis(result.FinishedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateResult
		}
		return fmt.Errorf("insert game result: %w", err)
	}
	return nil
}

// RecentResults returns the newest results first.
func (s *SQLiteStore) RecentResults(ctx context.Context, limit int) ([]game.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_id, winner, winner_name, turns, players, started_at, finished_at
		 FROM game_results ORDER BY finished_at DESC, id DESC LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query game results: %w", err)
	}
	defer rows.Close()

	results := make([]game.Result, 0)
	for rows.Next() {
		var (
			r                 game.Result
			players           string
			started, finished int64
		)
		if err := rows.Scan(&r.RoomID, &r.Winner, &r.WinnerName, &r.Turns, &players, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan game result: %w", err)
		}
		if err := json.Unmarshal([]byte(players), &r.Players); err != nil {
			return nil, fmt.Errorf("decode players: %w", err)
		}
		r.StartedAt = fromMillis(started)
		r.FinishedAt = fromMillis(finished)
		r.ReplayID = game.ReplayID(r.RoomID, r.StartedAt)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate game results: %w", err)
	}
	return results, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
