// Package board holds the client-local view of a board's shapes together
// with a coarse, snapshot based undo/redo history.
package board

import (
	"slices"
	"sync"

	"doska/internal/models"
	"doska/internal/ring"
)

// HistoryLimit bounds both the undo and the redo stacks.
const HistoryLimit = 50

type UpdateOptions struct {
	// SkipHistory is set for mutations produced while a gesture is still in
	// progress. The final mutation of the gesture must be committed without
	// it so that a single undo reverts the whole gesture.
	SkipHistory bool
}

// ChangeFunc observes the shape set after every change.
type ChangeFunc func(shapes []models.Shape)

// Store is the authoritative local view of one board.
//
// The shape slice is copy-on-write: every mutation builds a new slice, so
// history entries can keep references to previous slices without copying.
type Store struct {
	shapes   []models.Shape
	selected string
	history  *ring.Buffer[[]models.Shape]
	future   *ring.Buffer[[]models.Shape]
	watchers []ChangeFunc
	// gesture is the shape set from before the first uncommitted
	// SkipHistory mutation, or nil when no gesture is in progress.
	gesture []models.Shape

	mu sync.Mutex
}

func NewStore() *Store {
	return &Store{
		shapes:  []models.Shape{},
		history: ring.New[[]models.Shape](HistoryLimit),
		future:  ring.New[[]models.Shape](HistoryLimit),
	}
}

// OnChange registers an observer. Observers run after the store lock has
// been released and receive their own copy of the shape set.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// Load replaces the entire shape set and forgets all history.
func (s *Store) Load(shapes []models.Shape) {
	s.mutate(func() bool {
		s.shapes = models.CloneShapes(shapes)
		s.history.Clear()
		s.future.Clear()
		s.gesture = nil
		s.dropStaleSelection()
		return true
	})
}

// Add upserts a shape by id and records history.
func (s *Store) Add(shape models.Shape) {
	s.mutate(func() bool {
		s.commit()
		s.shapes = upsert(s.shapes, shape.Clone())
		return true
	})
}

// Update merges shape into the existing shape with the same id.
// Unknown ids are ignored.
func (s *Store) Update(shape models.Shape, opts UpdateOptions) {
	s.mutate(func() bool {
		next, ok := merge(s.shapes, shape)
		if !ok {
			return false
		}
		if opts.SkipHistory {
			if s.gesture == nil {
				s.gesture = s.shapes
			}
		} else {
			s.commit()
		}
		s.shapes = next
		return true
	})
}

// Remove deletes the shape with the given id. Unknown ids are ignored.
func (s *Store) Remove(id string) {
	s.mutate(func() bool {
		next, ok := remove(s.shapes, id)
		if !ok {
			return false
		}
		s.commit()
		s.shapes = next
		s.dropStaleSelection()
		return true
	})
}

// Select sets the single selected shape; an empty id clears the selection.
func (s *Store) Select(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = id
}

func (s *Store) Undo() {
	s.mutate(func() bool {
		previous, ok := s.history.PopBack()
		if !ok {
			return false
		}
		s.future.PushFront(s.shapes)
		s.shapes = previous
		s.gesture = nil
		s.dropStaleSelection()
		return true
	})
}

func (s *Store) Redo() {
	s.mutate(func() bool {
		next, ok := s.future.PopFront()
		if !ok {
			return false
		}
		s.history.PushBack(s.shapes)
		s.shapes = next
		s.gesture = nil
		s.dropStaleSelection()
		return true
	})
}

// ApplyRemote merges a message that originated on another peer. Remote
// mutations never touch the undo or redo stacks. It reports whether the
// shape set changed.
func (s *Store) ApplyRemote(msg models.Message) bool {
	changed := false
	s.mutate(func() bool {
		switch msg.Type {
		case models.MessageTypeShapeCreate:
			if msg.Shape == nil {
				return false
			}
			s.shapes = upsert(s.shapes, msg.Shape.Clone())
			changed = true
		case models.MessageTypeShapeUpdate:
			if msg.Shape == nil {
				return false
			}
			s.shapes, changed = merge(s.shapes, *msg.Shape)
		case models.MessageTypeShapeDelete:
			s.shapes, changed = remove(s.shapes, msg.ShapeID)
			s.dropStaleSelection()
		}
		return changed
	})
	return changed
}

func (s *Store) Shapes() []models.Shape {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneShapes(s.shapes)
}

func (s *Store) Shape(id string) (models.Shape, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.shapes, id)
	if i < 0 {
		return models.Shape{}, false
	}
	return s.shapes[i].Clone(), true
}

// Selected returns the selected shape id, or "" when nothing is selected.
func (s *Store) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Store) CanUndo() bool {
	return s.HistoryLen() > 0
}

func (s *Store) CanRedo() bool {
	return s.FutureLen() > 0
}

func (s *Store) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Len()
}

func (s *Store) FutureLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.future.Len()
}

// mutate runs fn under the lock and notifies watchers if fn reports a change.
func (s *Store) mutate(fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	shapes := s.shapes
	watchers := slices.Clone(s.watchers)
	s.mu.Unlock()

	for _, w := range watchers {
		w(models.CloneShapes(shapes))
	}
}

// commit records an undo step. An open gesture is recorded from its
// starting point so the whole gesture undoes at once. Must hold mu.
func (s *Store) commit() {
	base := s.shapes
	if s.gesture != nil {
		base = s.gesture
		s.gesture = nil
	}
	s.history.PushBack(base)
	s.future.Clear()
}

// Must hold mu.
func (s *Store) dropStaleSelection() {
	if s.selected != "" && indexOf(s.shapes, s.selected) < 0 {
		s.selected = ""
	}
}

func indexOf(shapes []models.Shape, id string) int {
	return slices.IndexFunc(shapes, func(s models.Shape) bool { return s.ID == id })
}

// upsert returns a new slice with any shape of the same id replaced by
// shape, which is moved to the end (topmost in render order).
func upsert(shapes []models.Shape, shape models.Shape) []models.Shape {
	next := make([]models.Shape, 0, len(shapes)+1)
	for _, current := range shapes {
		if current.ID != shape.ID {
			next = append(next, current)
		}
	}
	return append(next, shape)
}

func merge(shapes []models.Shape, patch models.Shape) ([]models.Shape, bool) {
	i := indexOf(shapes, patch.ID)
	if i < 0 {
		return shapes, false
	}
	next := slices.Clone(shapes)
	next[i] = shapes[i].Merge(patch)
	return next, true
}

func remove(shapes []models.Shape, id string) ([]models.Shape, bool) {
	i := indexOf(shapes, id)
	if i < 0 {
		return shapes, false
	}
	return slices.Delete(slices.Clone(shapes), i, i+1), true
}
