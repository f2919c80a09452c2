package presence

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"doska/internal/models"

	"github.com/c-pro/geche"
)

const (
	// EntryTTL is how long a single persisted entry is considered live.
	EntryTTL = 8 * time.Second
	// BoardTTL is how long a board's presence record survives without writes.
	BoardTTL = 10 * time.Second
)

// Entry is a persisted presence state.
type Entry struct {
	models.PresenceState
	// ExpiresAt is a unix timestamp in milliseconds.
	ExpiresAt int64 `json:"expiresAt"`
}

func NewEntry(p models.PresenceState, now time.Time) Entry {
	return Entry{
		PresenceState: p.Clone(),
		ExpiresAt:     now.Add(EntryTTL).UnixMilli(),
	}
}

func (e Entry) Expired(now time.Time) bool {
	return e.ExpiresAt > 0 && now.UnixMilli() > e.ExpiresAt
}

// Store is the durable, short lived presence table of every board.
type Store interface {
	Put(ctx context.Context, boardID string, entry Entry) error
	Get(ctx context.Context, boardID string) (map[string]Entry, error)
}

// normalize applies the read rules shared by every store: unknown roles
// read as editor and expired entries are dropped.
func normalize(entries map[string]Entry, now time.Time) map[string]Entry {
	out := make(map[string]Entry, len(entries))
	for userID, e := range entries {
		if e.Expired(now) {
			continue
		}
		e.Role = models.NormalizeRole(e.Role)
		if e.UserID == "" {
			e.UserID = userID
		}
		out[userID] = e
	}
	return out
}

// MemoryStore keeps presence in process. Each board record expires
// BoardTTL after its last write.
type MemoryStore struct {
	boards *geche.Locker[string, map[string]Entry]
	now    func() time.Time
}

func NewMemoryStore(ctx context.Context) *MemoryStore {
	return &MemoryStore{
		boards: geche.NewLocker[string, map[string]Entry](
			geche.NewMapTTLCache[string, map[string]Entry](ctx, BoardTTL, time.Second),
		),
		now: time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, boardID string, entry Entry) error {
	tx := s.boards.Lock()
	defer tx.Unlock()

	entries, err := tx.Get(boardID)
	if err != nil {
		entries = nil
	}
	next := make(map[string]Entry, len(entries)+1)
	maps.Copy(next, entries)
	next[entry.UserID] = entry
	tx.Set(boardID, next)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, boardID string) (map[string]Entry, error) {
	tx := s.boards.Lock()
	defer tx.Unlock()

	entries, err := tx.Get(boardID)
	if err != nil {
		return map[string]Entry{}, nil
	}
	return normalize(entries, s.now()), nil
}

// FallbackStore writes through to memory and reads from it whenever the
// primary store fails.
type FallbackStore struct {
	primary  Store
	fallback Store
}

func NewFallbackStore(primary, fallback Store) *FallbackStore {
	return &FallbackStore{primary: primary, fallback: fallback}
}

func (s *FallbackStore) Put(ctx context.Context, boardID string, entry Entry) error {
	if err := s.fallback.Put(ctx, boardID, entry); err != nil {
		return err
	}
	if err := s.primary.Put(ctx, boardID, entry); err != nil {
		slog.Warn("presence store unavailable, kept in memory", "board_id", boardID, "error", err)
	}
	return nil
}

func (s *FallbackStore) Get(ctx context.Context, boardID string) (map[string]Entry, error) {
	entries, err := s.primary.Get(ctx, boardID)
	if err == nil {
		return entries, nil
	}
	slog.Warn("presence store unavailable, reading memory", "board_id", boardID, "error", err)
	return s.fallback.Get(ctx, boardID)
}
