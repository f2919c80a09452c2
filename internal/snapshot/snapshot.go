// Package snapshot keeps durable board snapshots in step with the live
// shape set: editors autosave with a trailing debounce, spectators poll.
package snapshot

import (
	"context"
	"time"

	"doska/internal/models"
)

const (
	DefaultSaveDelay    = 2 * time.Second
	DefaultPollInterval = time.Second
	saveTimeout         = 10 * time.Second
)

// Repository is the durable side of boards: metadata, versioned
// snapshots and read-only shares.
type Repository interface {
	CreateBoard(ctx context.Context, name, ownerID string) (models.Board, error)
	GetBoard(ctx context.Context, boardID string) (models.Board, error)
	ListBoards(ctx context.Context, ownerID string) ([]models.Board, error)
	// LoadSnapshot returns the latest snapshot of a board.
	LoadSnapshot(ctx context.Context, boardID string) (models.Snapshot, error)
	// SaveSnapshot stores shapes as a new snapshot and returns its version,
	// one more than the latest stored version.
	SaveSnapshot(ctx context.Context, boardID string, shapes []models.Shape) (int64, error)
	CreateShare(ctx context.Context, boardID, ownerID string) (models.Share, error)
	// ResolveShare returns the shared board with its latest snapshot.
	ResolveShare(ctx context.Context, shareID string) (models.BoardPayload, error)
}

// Open returns a board together with its latest snapshot.
func Open(ctx context.Context, repo Repository, boardID string) (models.BoardPayload, error) {
	board, err := repo.GetBoard(ctx, boardID)
	if err != nil {
		return models.BoardPayload{}, err
	}
	snap, err := repo.LoadSnapshot(ctx, boardID)
	if err != nil {
		return models.BoardPayload{}, err
	}
	return models.BoardPayload{Board: board, Snapshot: snap}, nil
}

// Saver persists the full shape set of a board.
type Saver interface {
	Save(ctx context.Context, boardID string, shapes []models.Shape) error
}

// FetchFunc returns the currently published shape set.
type FetchFunc func(ctx context.Context) ([]models.Shape, error)
