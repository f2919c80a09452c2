package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"doska/internal/models"
	"doska/internal/stubs"

	"go.etcd.io/bbolt"
)

func newTestStorage(t *testing.T) *BboltStorage {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "storage_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	store, err := NewBboltStorage(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStorage(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	t.Run("DemoSeed", func(t *testing.T) {
		board, err := store.GetBoard(ctx, stubs.DemoBoardID)
		if err != nil {
			t.Fatalf("GetBoard failed: %v", err)
		}
		if board.Slug != "product-strategy-sprint" {
			t.Errorf("expected demo slug, got %s", board.Slug)
		}

		payload, err := store.ResolveShare(ctx, stubs.DemoShareID)
		if err != nil {
			t.Fatalf("ResolveShare failed: %v", err)
		}
		if payload.Board.ID != stubs.DemoBoardID {
			t.Errorf("expected demo board, got %s", payload.Board.ID)
		}
		if payload.Snapshot.Version != 1 || len(payload.Snapshot.Shapes) != 0 {
			t.Errorf("expected empty version 1 snapshot, got %+v", payload.Snapshot)
		}
	})

	t.Run("CreateAndList", func(t *testing.T) {
		board, err := store.CreateBoard(ctx, "Quarterly  Planning", "alice")
		if err != nil {
			t.Fatalf("CreateBoard failed: %v", err)
		}
		if board.Slug != "quarterly-planning" {
			t.Errorf("expected slug quarterly-planning, got %s", board.Slug)
		}

		snap, err := store.LoadSnapshot(ctx, board.ID)
		if err != nil {
			t.Fatalf("LoadSnapshot failed: %v", err)
		}
		if snap.Version != 1 {
			t.Errorf("expected version 1, got %d", snap.Version)
		}

		if _, err := store.CreateBoard(ctx, "Other", "bob"); err != nil {
			t.Fatalf("CreateBoard failed: %v", err)
		}
		boards, err := store.ListBoards(ctx, "alice")
		if err != nil {
			t.Fatalf("ListBoards failed: %v", err)
		}
		if len(boards) != 1 || boards[0].ID != board.ID {
			t.Errorf("expected only alice's board, got %+v", boards)
		}
	})

	t.Run("ListOrder", func(t *testing.T) {
		first, _ := store.CreateBoard(ctx, "First", "carol")
		second, _ := store.CreateBoard(ctx, "Second", "carol")

		// Make sure the save lands on a later millisecond.
		time.Sleep(5 * time.Millisecond)
		if _, err := store.SaveSnapshot(ctx, first.ID, []models.Shape{}); err != nil {
			t.Fatalf("SaveSnapshot failed: %v", err)
		}

		boards, err := store.ListBoards(ctx, "carol")
		if err != nil {
			t.Fatalf("ListBoards failed: %v", err)
		}
		if len(boards) != 2 || boards[0].ID != first.ID || boards[1].ID != second.ID {
			t.Errorf("expected recently updated board first, got %+v", boards)
		}
	})

	t.Run("SnapshotVersions", func(t *testing.T) {
		board, _ := store.CreateBoard(ctx, "Versions", "dave")
		text := "hello"
		shapes := []models.Shape{
			{ID: "s1", Kind: models.ShapeKindRectangle, Points: []float64{0, 0, 10, 10}, Fill: "#fff", StrokeWidth: 2},
			{ID: "s2", Kind: models.ShapeKindText, Points: []float64{5, 5}, Text: &text},
		}

		version, err := store.SaveSnapshot(ctx, board.ID, shapes)
		if err != nil {
			t.Fatalf("SaveSnapshot failed: %v", err)
		}
		if version != 2 {
			t.Errorf("expected version 2, got %d", version)
		}

		snap, err := store.LoadSnapshot(ctx, board.ID)
		if err != nil {
			t.Fatalf("LoadSnapshot failed: %v", err)
		}
		if snap.Version != 2 || len(snap.Shapes) != 2 {
			t.Fatalf("unexpected snapshot %+v", snap)
		}
		if snap.Shapes[1].Text == nil || *snap.Shapes[1].Text != "hello" {
			t.Errorf("text not preserved: %+v", snap.Shapes[1])
		}
		if snap.Shapes[0].Points[2] != 10 {
			t.Errorf("points not preserved: %+v", snap.Shapes[0])
		}
	})

	t.Run("Retention", func(t *testing.T) {
		board, _ := store.CreateBoard(ctx, "Retention", "erin")
		var version int64
		for range SnapshotRetention + 5 {
			var err error
			version, err = store.SaveSnapshot(ctx, board.ID, []models.Shape{})
			if err != nil {
				t.Fatalf("SaveSnapshot failed: %v", err)
			}
		}

		var kept int
		err := store.db.View(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucketSnapshots).Bucket([]byte(board.ID)).ForEach(func(_, _ []byte) error {
				kept++
				return nil
			})
		})
		if err != nil {
			t.Fatal(err)
		}
		if kept != SnapshotRetention {
			t.Errorf("expected %d versions kept, got %d", SnapshotRetention, kept)
		}

		snap, _ := store.LoadSnapshot(ctx, board.ID)
		if snap.Version != version {
			t.Errorf("expected latest version %d, got %d", version, snap.Version)
		}
	})

	t.Run("Shares", func(t *testing.T) {
		board, _ := store.CreateBoard(ctx, "Shared", "frank")

		share, err := store.CreateShare(ctx, board.ID, "")
		if err != nil {
			t.Fatalf("CreateShare failed: %v", err)
		}
		if share.ShareID == "" || share.CreatedBy != "frank" {
			t.Errorf("unexpected share %+v", share)
		}

		payload, err := store.ResolveShare(ctx, share.ShareID)
		if err != nil {
			t.Fatalf("ResolveShare failed: %v", err)
		}
		if payload.Board.ID != board.ID {
			t.Errorf("expected board %s, got %s", board.ID, payload.Board.ID)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := store.GetBoard(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := store.LoadSnapshot(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := store.SaveSnapshot(ctx, "missing", nil); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := store.CreateShare(ctx, "missing", "x"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := store.ResolveShare(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSeedIsIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "seed.db")

	store, err := NewBboltStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveSnapshot(context.Background(), stubs.DemoBoardID, []models.Shape{}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	store, err = NewBboltStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.Close() }()

	snap, err := store.LoadSnapshot(context.Background(), stubs.DemoBoardID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Version != 2 {
		t.Errorf("expected reopened demo board to keep version 2, got %d", snap.Version)
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Product Strategy Sprint": "product-strategy-sprint",
		"  Trim me  ":             "trim-me",
		"Tabs\tand\nlines":        "tabs-and-lines",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
