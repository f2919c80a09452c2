package presence

import (
	"sync"
	"time"

	"doska/internal/models"
)

const (
	DefaultFrameInterval   = 16 * time.Millisecond
	DefaultPersistInterval = 350 * time.Millisecond
)

type PublisherConfig struct {
	UserID string
	Name   string
	// Color defaults to RandomColor().
	Color string
	Role  models.Role

	// Broadcast sends the state over the realtime channel.
	Broadcast func(models.PresenceState)
	// Persist writes the state to the durable presence store.
	Persist func(models.PresenceState)

	FrameInterval   time.Duration
	PersistInterval time.Duration
	Now             func() time.Time
}

// Publisher coalesces cursor movement into at most one broadcast per
// frame and throttles durable writes.
type Publisher struct {
	cfg PublisherConfig

	mu          sync.Mutex
	pending     *models.Cursor
	timer       *time.Timer
	lastPersist time.Time
	stopped     bool
}

func NewPublisher(cfg PublisherConfig) *Publisher {
	if cfg.Color == "" {
		cfg.Color = RandomColor()
	}
	if !cfg.Role.Valid() {
		cfg.Role = models.RoleEditor
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.PersistInterval <= 0 {
		cfg.PersistInterval = DefaultPersistInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Broadcast == nil {
		cfg.Broadcast = func(models.PresenceState) {}
	}
	if cfg.Persist == nil {
		cfg.Persist = func(models.PresenceState) {}
	}
	return &Publisher{cfg: cfg}
}

// Move schedules a cursor update for the next frame. A nil cursor means
// the pointer left the canvas.
func (p *Publisher) Move(cursor *models.Cursor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	if cursor != nil {
		c := *cursor
		cursor = &c
	}
	p.pending = cursor
	if p.timer != nil {
		return
	}
	p.timer = time.AfterFunc(p.cfg.FrameInterval, p.flush)
}

// Leave is Move(nil).
func (p *Publisher) Leave() {
	p.Move(nil)
}

// Stop cancels a pending frame. The publisher ignores moves afterwards.
func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Publisher) flush() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	cursor := p.pending
	p.pending = nil

	now := p.cfg.Now()
	state := models.PresenceState{
		UserID:   p.cfg.UserID,
		Name:     p.cfg.Name,
		Color:    p.cfg.Color,
		Cursor:   cursor,
		LastSeen: now.UnixMilli(),
		Role:     p.cfg.Role,
	}
	persist := cursor == nil || now.Sub(p.lastPersist) >= p.cfg.PersistInterval
	if persist {
		p.lastPersist = now
	}
	p.mu.Unlock()

	p.cfg.Broadcast(state)
	if persist {
		p.cfg.Persist(state)
	}
}
