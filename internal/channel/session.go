package channel

import (
	"log/slog"
	"sync"

	"doska/internal/board"
	"doska/internal/models"
	"doska/internal/presence"
)

type conn interface {
	Send(msg models.Message)
	Subscribe(l Listener) func()
}

// Session binds a board store and a presence tracker to a channel. It is
// the only place local edits are turned into realtime messages, and it
// refuses to emit shape edits for spectators.
type Session struct {
	conn     conn
	store    *board.Store
	tracker  *presence.Tracker
	role     models.Role
	clientID string

	unsubscribe func()
	once        sync.Once
}

func NewSession(c conn, store *board.Store, tracker *presence.Tracker, role models.Role, clientID string) *Session {
	s := &Session{
		conn:     c,
		store:    store,
		tracker:  tracker,
		role:     role,
		clientID: clientID,
	}
	s.unsubscribe = c.Subscribe(s.receive)
	return s
}

func (s *Session) ClientID() string  { return s.clientID }
func (s *Session) Role() models.Role { return s.role }
func (s *Session) CanEdit() bool     { return s.role.CanEdit() }

// CreateShape adds shape locally and broadcasts it.
func (s *Session) CreateShape(shape models.Shape) {
	if !s.CanEdit() {
		return
	}
	s.store.Add(shape)
	s.conn.Send(models.NewShapeCreate(shape))
}

// PublishShape merges shape locally and broadcasts the merged result.
// Intermediate gesture updates pass SkipHistory.
func (s *Session) PublishShape(shape models.Shape, opts board.UpdateOptions) {
	if !s.CanEdit() {
		return
	}
	s.store.Update(shape, opts)
	merged, ok := s.store.Shape(shape.ID)
	if !ok {
		return
	}
	s.conn.Send(models.NewShapeUpdate(merged))
}

func (s *Session) DeleteShape(id string) {
	if !s.CanEdit() {
		return
	}
	s.store.Remove(id)
	s.conn.Send(models.NewShapeDelete(id))
}

// PublishPresence broadcasts p on behalf of this session's client.
func (s *Session) PublishPresence(p models.PresenceState) {
	p.UserID = s.clientID
	p.Role = s.role
	s.conn.Send(models.NewPresenceUpdate(p))
}

// Close stops routing inbound messages. The channel itself is left open.
func (s *Session) Close() {
	s.once.Do(s.unsubscribe)
}

func (s *Session) receive(msg models.Message) {
	switch {
	case msg.IsShapeEdit():
		s.store.ApplyRemote(msg)
	case msg.Type == models.MessageTypePresenceUpdate:
		if msg.Presence == nil || msg.Presence.UserID == s.clientID {
			return
		}
		s.tracker.Upsert(*msg.Presence)
	default:
		slog.Debug("ignoring realtime message", "type", msg.Type)
	}
}
