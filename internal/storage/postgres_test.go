package storage

import (
	"context"
	"os"
	"testing"

	"doska/internal/models"
	"doska/internal/stubs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_TEST_URL")
	if url == "" {
		t.Skip("DATABASE_TEST_URL not set")
	}
	pool, err := NewPostgresPool(context.Background(), url)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(pool.Close)
	return pool
}

func cleanupBoard(t *testing.T, pool *pgxpool.Pool, boardID string) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `DELETE FROM boards WHERE id = $1`, boardID)
	assert.NoError(t, err)
}

func TestPostgresStorage_Migrate(t *testing.T) {
	pool := getTestPool(t)
	store := NewPostgresStorage(pool)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "Migrate should be idempotent")

	payload, err := store.ResolveShare(ctx, stubs.DemoShareID)
	require.NoError(t, err)
	assert.Equal(t, stubs.DemoBoardID, payload.Board.ID)
	assert.NotNil(t, payload.Snapshot.Shapes)
}

func TestPostgresStorage_SnapshotVersions(t *testing.T) {
	pool := getTestPool(t)
	store := NewPostgresStorage(pool)
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	board, err := store.CreateBoard(ctx, "Postgres Board", "pg-owner")
	require.NoError(t, err)
	defer cleanupBoard(t, pool, board.ID)
	assert.Equal(t, "postgres-board", board.Slug)

	snap, err := store.LoadSnapshot(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)
	assert.Empty(t, snap.Shapes)

	shape := models.NewShape("s1", models.ShapeKindSticky, 10, 20)
	version, err := store.SaveSnapshot(ctx, board.ID, []models.Shape{shape})
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	snap, err = store.LoadSnapshot(ctx, board.ID)
	require.NoError(t, err)
	require.Len(t, snap.Shapes, 1)
	assert.Equal(t, shape.ID, snap.Shapes[0].ID)
	assert.Equal(t, shape.Kind, snap.Shapes[0].Kind)
}

func TestPostgresStorage_Shares(t *testing.T) {
	pool := getTestPool(t)
	store := NewPostgresStorage(pool)
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	board, err := store.CreateBoard(ctx, "Shared", "pg-owner")
	require.NoError(t, err)
	defer cleanupBoard(t, pool, board.ID)

	share, err := store.CreateShare(ctx, board.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "pg-owner", share.CreatedBy)

	payload, err := store.ResolveShare(ctx, share.ShareID)
	require.NoError(t, err)
	assert.Equal(t, board.ID, payload.Board.ID)

	_, err = store.ResolveShare(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = store.SaveSnapshot(ctx, "missing", nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
