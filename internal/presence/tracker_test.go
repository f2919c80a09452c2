package presence

import (
	"context"
	"testing"
	"time"

	"doska/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func state(userID string, role models.Role, lastSeen time.Time, cursor *models.Cursor) models.PresenceState {
	return models.PresenceState{
		UserID:   userID,
		Name:     userID,
		Color:    Colors[0],
		Cursor:   cursor,
		LastSeen: lastSeen.UnixMilli(),
		Role:     role,
	}
}

func TestTracker_ListHidesStale(t *testing.T) {
	now := time.Now()
	tr := NewTracker()
	tr.Upsert(state("fresh", models.RoleEditor, now.Add(-time.Second), nil))
	tr.Upsert(state("stale", models.RoleEditor, now.Add(-6*time.Second), nil))

	list := tr.List(now)
	require.Len(t, list, 1)
	assert.Equal(t, "fresh", list[0].UserID)

	assert.Equal(t, 1, tr.Sweep(now))
	assert.Len(t, tr.List(now.Add(-10*time.Second)), 1)
}

func TestTracker_Visible(t *testing.T) {
	now := time.Now()
	tr := NewTracker()
	cursor := &models.Cursor{X: 1, Y: 2}
	tr.Upsert(state("editor", models.RoleEditor, now, cursor))
	tr.Upsert(state("watcher", models.RoleSpectator, now, cursor))
	tr.Upsert(state("away", models.RoleEditor, now, nil))

	var seenByEditor []string
	for _, p := range tr.Visible(models.RoleEditor, now) {
		seenByEditor = append(seenByEditor, p.UserID)
	}
	assert.Equal(t, []string{"editor"}, seenByEditor)

	var seenBySpectator []string
	for _, p := range tr.Visible(models.RoleSpectator, now) {
		seenBySpectator = append(seenBySpectator, p.UserID)
	}
	assert.Equal(t, []string{"editor", "watcher"}, seenBySpectator)
}

func TestTracker_MergeKeepsNewer(t *testing.T) {
	now := time.Now()
	tr := NewTracker()
	tr.Upsert(state("a", models.RoleEditor, now, &models.Cursor{X: 10, Y: 10}))

	tr.Merge(map[string]models.PresenceState{
		"a": state("a", models.RoleEditor, now.Add(-time.Second), &models.Cursor{X: 1, Y: 1}),
		"b": state("", models.RoleSpectator, now, nil),
	})

	list := tr.List(now)
	require.Len(t, list, 2)
	assert.Equal(t, 10.0, list[0].Cursor.X)
	assert.Equal(t, "b", list[1].UserID)
}

func TestTracker_UpsertIgnoresAnonymous(t *testing.T) {
	tr := NewTracker()
	tr.Upsert(models.PresenceState{Name: "nobody", LastSeen: time.Now().UnixMilli()})
	assert.Empty(t, tr.List(time.Now()))
}

func TestTracker_RunStopsOnCancel(t *testing.T) {
	tr := NewTracker()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- tr.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRandomColor(t *testing.T) {
	for range 20 {
		assert.Contains(t, Colors, RandomColor())
	}
}
