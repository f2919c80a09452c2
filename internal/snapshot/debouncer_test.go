package snapshot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"doska/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type saveCall struct {
	boardID string
	shapes  []models.Shape
}

type mockSaver struct {
	calls chan saveCall
	err   error
}

func newMockSaver() *mockSaver {
	return &mockSaver{calls: make(chan saveCall, 10)}
}

func (m *mockSaver) Save(_ context.Context, boardID string, shapes []models.Shape) error {
	m.calls <- saveCall{boardID: boardID, shapes: shapes}
	return m.err
}

func shapes(ids ...string) []models.Shape {
	out := make([]models.Shape, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.NewShape(id, models.ShapeKindPen))
	}
	return out
}

func TestDebouncer_SavesLatestAfterQuietPeriod(t *testing.T) {
	saver := newMockSaver()
	d := NewDebouncer(saver, "b1", 30*time.Millisecond)
	defer d.Stop()

	d.Changed(shapes("a"))
	time.Sleep(10 * time.Millisecond)
	d.Changed(shapes("a", "b"))
	time.Sleep(10 * time.Millisecond)
	d.Changed(shapes("a", "b", "c"))
	assert.True(t, d.Pending())

	select {
	case call := <-saver.calls:
		assert.Equal(t, "b1", call.boardID)
		assert.Len(t, call.shapes, 3)
	case <-time.After(time.Second):
		t.Fatal("debounced save did not happen")
	}

	select {
	case call := <-saver.calls:
		t.Fatalf("unexpected extra save: %+v", call)
	case <-time.After(60 * time.Millisecond):
	}
	assert.False(t, d.Pending())
}

func TestDebouncer_EmptySetIsNotSaved(t *testing.T) {
	saver := newMockSaver()
	d := NewDebouncer(saver, "b1", 10*time.Millisecond)
	defer d.Stop()

	d.Changed(shapes("a"))
	d.Changed(nil)
	assert.False(t, d.Pending())

	select {
	case call := <-saver.calls:
		t.Fatalf("unexpected save: %+v", call)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDebouncer_Flush(t *testing.T) {
	saver := newMockSaver()
	d := NewDebouncer(saver, "b1", time.Hour)
	defer d.Stop()

	require.NoError(t, d.Flush(context.Background()))
	assert.Len(t, saver.calls, 0)

	d.Changed(shapes("a"))
	require.NoError(t, d.Flush(context.Background()))
	require.Len(t, saver.calls, 1)
	assert.False(t, d.Pending())

	saver.err = errors.New("down")
	d.Changed(shapes("b"))
	assert.Error(t, d.Flush(context.Background()))
}

func TestDebouncer_StopDropsPending(t *testing.T) {
	saver := newMockSaver()
	d := NewDebouncer(saver, "b1", 10*time.Millisecond)

	d.Changed(shapes("a"))
	d.Stop()
	d.Changed(shapes("b"))

	select {
	case call := <-saver.calls:
		t.Fatalf("unexpected save: %+v", call)
	case <-time.After(50 * time.Millisecond):
	}
}

type recordingStore struct {
	mu    sync.Mutex
	loads [][]models.Shape
}

func (s *recordingStore) Load(shapes []models.Shape) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads = append(s.loads, shapes)
}

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loads)
}

func TestSpectatorPoller(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	fetch := func(ctx context.Context) ([]models.Shape, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		switch calls {
		case 1:
			return nil, errors.New("offline")
		case 2:
			return nil, nil
		}
		return shapes("a", "b"), nil
	}

	store := &recordingStore{}
	p := NewSpectatorPoller(fetch, store, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return store.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.loads[0], 2)
}
