package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"doska/internal/models"
	"doska/internal/stubs"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.etcd.io/bbolt"
)

var (
	bucketBoards    = []byte("boards")
	bucketSnapshots = []byte("snapshots")
	bucketShares    = []byte("shares")
)

// SnapshotRetention is the number of snapshot versions kept per board.
const SnapshotRetention = 20

// ListLimit caps ListBoards results.
const ListLimit = 50

type BboltStorage struct {
	db  *bbolt.DB
	now func() time.Time
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketBoards, bucketSnapshots, bucketShares} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	s := &BboltStorage{db: db, now: time.Now}
	if err := s.seedDemo(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to seed demo board: %w", err)
	}
	return s, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// seedDemo stores the demo board, an empty first snapshot and the demo
// share unless they already exist.
func (s *BboltStorage) seedDemo() error {
	now := s.now()
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketBoards).Get([]byte(stubs.DemoBoardID)) == nil {
			if err := putBoard(tx, stubs.DemoBoard(now)); err != nil {
				return err
			}
			if _, err := putSnapshot(tx, stubs.DemoBoardID, []models.Shape{}, now); err != nil {
				return err
			}
		}
		if tx.Bucket(bucketShares).Get([]byte(stubs.DemoShareID)) == nil {
			return putShare(tx, stubs.DemoShare(now))
		}
		return nil
	})
}

var slugSeparators = regexp.MustCompile(`\s+`)

func Slugify(name string) string {
	return slugSeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// NewShareID returns a short, unguessable, time ordered share id.
func NewShareID(now time.Time) string {
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(now), rand.Reader).String())
}

func (s *BboltStorage) CreateBoard(_ context.Context, name, ownerID string) (models.Board, error) {
	now := s.now()
	board := models.Board{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      Slugify(name),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := putBoard(tx, board); err != nil {
			return err
		}
		_, err := putSnapshot(tx, board.ID, []models.Shape{}, now)
		return err
	})
	if err != nil {
		return models.Board{}, fmt.Errorf("failed to create board: %w", err)
	}
	return board, nil
}

func (s *BboltStorage) GetBoard(_ context.Context, boardID string) (models.Board, error) {
	var board models.Board
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		board, err = getBoard(tx, boardID)
		return err
	})
	return board, err
}

// ListBoards returns the boards of an owner, most recently updated first.
func (s *BboltStorage) ListBoards(_ context.Context, ownerID string) ([]models.Board, error) {
	var boards []models.Board
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBoards).ForEach(func(k, v []byte) error {
			var dbBoard DBBoard
			if err := dbBoard.UnmarshalBinary(v); err != nil {
				return err
			}
			if dbBoard.OwnerID == ownerID {
				boards = append(boards, fromDBBoard(dbBoard))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(boards, func(a, b models.Board) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if len(boards) > ListLimit {
		boards = boards[:ListLimit]
	}
	return boards, nil
}

func (s *BboltStorage) LoadSnapshot(_ context.Context, boardID string) (models.Snapshot, error) {
	var snap models.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		if _, err := getBoard(tx, boardID); err != nil {
			return err
		}
		snap = models.Snapshot{BoardID: boardID, Shapes: []models.Shape{}, UpdatedAt: s.now()}

		b := tx.Bucket(bucketSnapshots).Bucket([]byte(boardID))
		if b == nil {
			return nil
		}
		_, v := b.Cursor().Last()
		if v == nil {
			return nil
		}
		var dbSnap DBSnapshot
		if err := dbSnap.UnmarshalBinary(v); err != nil {
			return fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		snap = fromDBSnapshot(dbSnap)
		return nil
	})
	return snap, err
}

func (s *BboltStorage) SaveSnapshot(_ context.Context, boardID string, shapes []models.Shape) (int64, error) {
	var version int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		board, err := getBoard(tx, boardID)
		if err != nil {
			return err
		}
		now := s.now()
		version, err = putSnapshot(tx, boardID, shapes, now)
		if err != nil {
			return err
		}
		board.UpdatedAt = now
		return putBoard(tx, board)
	})
	return version, err
}

func (s *BboltStorage) CreateShare(_ context.Context, boardID, ownerID string) (models.Share, error) {
	now := s.now()
	var share models.Share
	err := s.db.Update(func(tx *bbolt.Tx) error {
		board, err := getBoard(tx, boardID)
		if err != nil {
			return err
		}
		if ownerID == "" {
			ownerID = board.OwnerID
		}
		share = models.Share{
			ShareID:   NewShareID(now),
			BoardID:   boardID,
			CreatedBy: ownerID,
			CreatedAt: now,
		}
		return putShare(tx, share)
	})
	return share, err
}

func (s *BboltStorage) ResolveShare(ctx context.Context, shareID string) (models.BoardPayload, error) {
	var boardID string
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketShares).Get([]byte(shareID))
		if v == nil {
			return models.ErrNotFound
		}
		var dbShare DBShare
		if err := dbShare.UnmarshalBinary(v); err != nil {
			return err
		}
		boardID = dbShare.BoardID
		return nil
	})
	if err != nil {
		return models.BoardPayload{}, err
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

func getBoard(tx *bbolt.Tx, boardID string) (models.Board, error) {
	v := tx.Bucket(bucketBoards).Get([]byte(boardID))
	if v == nil {
		return models.Board{}, models.ErrNotFound
	}
	var dbBoard DBBoard
	if err := dbBoard.UnmarshalBinary(v); err != nil {
		return models.Board{}, fmt.Errorf("failed to unmarshal board: %w", err)
	}
	return fromDBBoard(dbBoard), nil
}

func putBoard(tx *bbolt.Tx, board models.Board) error {
	dbBoard := &DBBoard{
		ID:        board.ID,
		Name:      board.Name,
		Slug:      board.Slug,
		OwnerID:   board.OwnerID,
		CreatedAt: board.CreatedAt.UnixMilli(),
		UpdatedAt: board.UpdatedAt.UnixMilli(),
	}
	return put(tx.Bucket(bucketBoards), dbBoard)
}

func putShare(tx *bbolt.Tx, share models.Share) error {
	dbShare := &DBShare{
		ShareID:   share.ShareID,
		BoardID:   share.BoardID,
		CreatedBy: share.CreatedBy,
		CreatedAt: share.CreatedAt.UnixMilli(),
	}
	return put(tx.Bucket(bucketShares), dbShare)
}

// putSnapshot appends a new version and trims versions beyond
// SnapshotRetention.
func putSnapshot(tx *bbolt.Tx, boardID string, shapes []models.Shape, now time.Time) (int64, error) {
	b, err := tx.Bucket(bucketSnapshots).CreateBucketIfNotExists([]byte(boardID))
	if err != nil {
		return 0, fmt.Errorf("failed to create snapshot bucket: %w", err)
	}

	version := int64(1)
	if k, _ := b.Cursor().Last(); k != nil {
		version = int64(binaryVersion(k)) + 1
	}

	dbSnap := &DBSnapshot{
		BoardID:   boardID,
		Version:   version,
		Shapes:    toDBShapes(shapes),
		UpdatedAt: now.UnixMilli(),
	}
	if err := put(b, dbSnap); err != nil {
		return 0, fmt.Errorf("failed to put snapshot: %w", err)
	}

	if cutoff := version - SnapshotRetention; cutoff > 0 {
		var stale [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil && int64(binaryVersion(k)) <= cutoff; k, _ = c.Next() {
			stale = append(stale, slices.Clone(k))
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return 0, err
			}
		}
	}
	return version, nil
}

func put(b *bbolt.Bucket, item Storeable) error {
	if b == nil {
		return errors.New("bucket does not exist")
	}
	data, err := item.MarshalBinary()
	if err != nil {
		return err
	}
	return b.Put(item.Key(), data)
}

func fromDBBoard(b DBBoard) models.Board {
	return models.Board{
		ID:        b.ID,
		Name:      b.Name,
		Slug:      b.Slug,
		OwnerID:   b.OwnerID,
		CreatedAt: time.UnixMilli(b.CreatedAt),
		UpdatedAt: time.UnixMilli(b.UpdatedAt),
	}
}

func fromDBSnapshot(s DBSnapshot) models.Snapshot {
	return models.Snapshot{
		BoardID:   s.BoardID,
		Version:   s.Version,
		Shapes:    fromDBShapes(s.Shapes),
		UpdatedAt: time.UnixMilli(s.UpdatedAt),
	}
}
