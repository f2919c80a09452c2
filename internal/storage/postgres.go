package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"doska/internal/models"
	"doska/internal/stubs"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	MaxConns        = 10
	MinConns        = 2
	MaxConnLifetime = 10 * time.Minute
	MaxConnIdleTime = 5 * time.Minute
)

func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	config.MaxConns = MaxConns
	config.MinConns = MinConns
	config.MaxConnLifetime = MaxConnLifetime
	config.MaxConnIdleTime = MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS boards (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	slug       TEXT NOT NULL,
	owner_id   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS boards_owner_updated_idx ON boards (owner_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS board_snapshots (
	board_id   TEXT NOT NULL REFERENCES boards (id) ON DELETE CASCADE,
	version    BIGINT NOT NULL,
	shapes     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (board_id, version)
);

CREATE TABLE IF NOT EXISTS board_shares (
	share_id   TEXT PRIMARY KEY,
	board_id   TEXT NOT NULL REFERENCES boards (id) ON DELETE CASCADE,
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresStorage keeps boards, versioned snapshots and share links in
// Postgres. Shapes are stored as a JSONB array.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

// Migrate creates the schema and seeds the demo board.
func (s *PostgresStorage) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	now := time.Now()
	demo := stubs.DemoBoard(now)
	share := stubs.DemoShare(now)
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO boards (id, name, slug, owner_id) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO NOTHING`,
			demo.ID, demo.Name, demo.Slug, demo.OwnerID)
		if err != nil {
			return fmt.Errorf("failed to seed demo board: %w", err)
		}
		if tag.RowsAffected() > 0 {
			if _, err := tx.Exec(ctx,
				`INSERT INTO board_snapshots (board_id, version, shapes) VALUES ($1, 1, $2)`,
				demo.ID, []models.Shape{}); err != nil {
				return fmt.Errorf("failed to seed demo snapshot: %w", err)
			}
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO board_shares (share_id, board_id, created_by) VALUES ($1, $2, $3)
			 ON CONFLICT (share_id) DO NOTHING`,
			share.ShareID, share.BoardID, share.CreatedBy)
		return err
	})
}

func (s *PostgresStorage) CreateBoard(ctx context.Context, name, ownerID string) (models.Board, error) {
	board := models.Board{
		ID:      uuid.NewString(),
		Name:    name,
		Slug:    Slugify(name),
		OwnerID: ownerID,
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO boards (id, name, slug, owner_id) VALUES ($1, $2, $3, $4)
			 RETURNING created_at, updated_at`,
			board.ID, board.Name, board.Slug, board.OwnerID,
		).Scan(&board.CreatedAt, &board.UpdatedAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO board_snapshots (board_id, version, shapes) VALUES ($1, 1, $2)`,
			board.ID, []models.Shape{})
		return err
	})
	if err != nil {
		return models.Board{}, fmt.Errorf("failed to create board: %w", err)
	}
	return board, nil
}

func (s *PostgresStorage) GetBoard(ctx context.Context, boardID string) (models.Board, error) {
	var board models.Board
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, owner_id, created_at, updated_at FROM boards WHERE id = $1`,
		boardID,
	).Scan(&board.ID, &board.Name, &board.Slug, &board.OwnerID, &board.CreatedAt, &board.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Board{}, models.ErrNotFound
	}
	if err != nil {
		return models.Board{}, fmt.Errorf("failed to get board: %w", err)
	}
	return board, nil
}

func (s *PostgresStorage) ListBoards(ctx context.Context, ownerID string) ([]models.Board, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, slug, owner_id, created_at, updated_at FROM boards
		 WHERE owner_id = $1 ORDER BY updated_at DESC LIMIT $2`,
		ownerID, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query boards: %w", err)
	}
	defer rows.Close()

	var boards []models.Board
	for rows.Next() {
		var board models.Board
		if err := rows.Scan(&board.ID, &board.Name, &board.Slug, &board.OwnerID, &board.CreatedAt, &board.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan board: %w", err)
		}
		boards = append(boards, board)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating boards: %w", err)
	}
	return boards, nil
}

func (s *PostgresStorage) LoadSnapshot(ctx context.Context, boardID string) (models.Snapshot, error) {
	if _, err := s.GetBoard(ctx, boardID); err != nil {
		return models.Snapshot{}, err
	}

	snap := models.Snapshot{BoardID: boardID}
	err := s.pool.QueryRow(ctx,
		`SELECT version, shapes, updated_at FROM board_snapshots
		 WHERE board_id = $1 ORDER BY version DESC LIMIT 1`,
		boardID,
	).Scan(&snap.Version, &snap.Shapes, &snap.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Snapshot{BoardID: boardID, Shapes: []models.Shape{}, UpdatedAt: time.Now()}, nil
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if snap.Shapes == nil {
		snap.Shapes = []models.Shape{}
	}
	return snap, nil
}

// SaveSnapshot appends version latest+1. The board row is locked so that
// concurrent saves never compute the same version.
func (s *PostgresStorage) SaveSnapshot(ctx context.Context, boardID string, shapes []models.Shape) (int64, error) {
	if shapes == nil {
		shapes = []models.Shape{}
	}
	var version int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `SELECT id FROM boards WHERE id = $1 FOR UPDATE`, boardID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return err
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO board_snapshots (board_id, version, shapes)
			 SELECT $1::text, COALESCE(MAX(version), 0) + 1, $2::jsonb FROM board_snapshots WHERE board_id = $1::text
			 RETURNING version`,
			boardID, shapes,
		).Scan(&version)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE boards SET updated_at = NOW() WHERE id = $1`, boardID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`DELETE FROM board_snapshots WHERE board_id = $1 AND version <= $2`,
			boardID, version-SnapshotRetention)
		return err
	})
	if errors.Is(err, models.ErrNotFound) {
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("failed to save snapshot: %w", err)
	}
	return version, nil
}

func (s *PostgresStorage) CreateShare(ctx context.Context, boardID, ownerID string) (models.Share, error) {
	board, err := s.GetBoard(ctx, boardID)
	if err != nil {
		return models.Share{}, err
	}
	if ownerID == "" {
		ownerID = board.OwnerID
	}

	share := models.Share{
		ShareID:   NewShareID(time.Now()),
		BoardID:   boardID,
		CreatedBy: ownerID,
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO board_shares (share_id, board_id, created_by) VALUES ($1, $2, $3)
		 RETURNING created_at`,
		share.ShareID, share.BoardID, share.CreatedBy,
	).Scan(&share.CreatedAt)
	if err != nil {
		return models.Share{}, fmt.Errorf("failed to create share: %w", err)
	}
	return share, nil
}

func (s *PostgresStorage) ResolveShare(ctx context.Context, shareID string) (models.BoardPayload, error) {
	var boardID string
	err := s.pool.QueryRow(ctx, `SELECT board_id FROM board_shares WHERE share_id = $1`, shareID).Scan(&boardID)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.BoardPayload{}, models.ErrNotFound
	}
	if err != nil {
		return models.BoardPayload{}, fmt.Errorf("failed to resolve share: %w", err)
	}

	board, err := s.GetBoard(ctx, boardID)
	if err != nil {
		return models.BoardPayload{}, err
	}
	snap, err := s.LoadSnapshot(ctx, boardID)
	if err != nil {
		return models.BoardPayload{}, err
	}
	return models.BoardPayload{Board: board, Snapshot: snap}, nil
}
