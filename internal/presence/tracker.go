// Package presence tracks who is looking at a board and where their
// cursor is. Nothing here is part of undo history or durable state.
package presence

import (
	"context"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"doska/internal/models"
)

const (
	// StaleAfter is how long an entry survives without a refresh.
	StaleAfter    = 5 * time.Second
	SweepInterval = 2 * time.Second
)

// Colors is the palette new participants pick their cursor colour from.
var Colors = []string{"#f97316", "#3b82f6", "#10b981", "#e11d48", "#a855f7"}

func RandomColor() string {
	return Colors[rand.IntN(len(Colors))]
}

// Tracker is the client side table of peers on one board, keyed by user id.
type Tracker struct {
	entries map[string]models.PresenceState
	mu      sync.RWMutex
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]models.PresenceState)}
}

// Upsert records a realtime presence update.
func (t *Tracker) Upsert(p models.PresenceState) {
	if p.UserID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[p.UserID] = p.Clone()
}

// Merge folds polled entries into the table. An entry already refreshed
// more recently over the realtime channel is kept.
func (t *Tracker) Merge(entries map[string]models.PresenceState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for userID, p := range entries {
		if current, ok := t.entries[userID]; ok && current.LastSeen > p.LastSeen {
			continue
		}
		p.UserID = userID
		t.entries[userID] = p.Clone()
	}
}

func (t *Tracker) Remove(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, userID)
}

// Sweep evicts stale entries and returns how many were removed.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for userID, p := range t.entries {
		if p.Expired(now, StaleAfter) {
			delete(t.entries, userID)
			removed++
		}
	}
	return removed
}

// Run sweeps every SweepInterval until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			t.Sweep(now)
		}
	}
}

// List returns the live entries ordered by user id. Entries older than
// StaleAfter are never returned, even if not swept yet.
func (t *Tracker) List(now time.Time) []models.PresenceState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.PresenceState, 0, len(t.entries))
	for _, p := range t.entries {
		if !p.Expired(now, StaleAfter) {
			out = append(out, p.Clone())
		}
	}
	slices.SortFunc(out, func(a, b models.PresenceState) int {
		return strings.Compare(a.UserID, b.UserID)
	})
	return out
}

// Visible returns the cursors a viewer with the given role should see:
// entries without a cursor are hidden and editors do not see spectators.
func (t *Tracker) Visible(viewer models.Role, now time.Time) []models.PresenceState {
	return slices.DeleteFunc(t.List(now), func(p models.PresenceState) bool {
		if p.Cursor == nil {
			return true
		}
		return viewer == models.RoleEditor && p.Role == models.RoleSpectator
	})
}
