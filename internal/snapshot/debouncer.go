package snapshot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"doska/internal/models"
)

// Debouncer saves the latest shape set once changes have been quiet for
// the configured delay. Every change restarts the wait.
type Debouncer struct {
	saver   Saver
	boardID string
	delay   time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending []models.Shape
	gen     uint64
	stopped bool
}

func NewDebouncer(saver Saver, boardID string, delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	return &Debouncer{saver: saver, boardID: boardID, delay: delay}
}

// Changed records a new shape set. It matches board.ChangeFunc so it can
// be registered with Store.OnChange directly. An empty set cancels any
// pending save and is never persisted.
func (d *Debouncer) Changed(shapes []models.Shape) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.cancelLocked()
	if len(shapes) == 0 {
		return
	}

	d.pending = models.CloneShapes(shapes)
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Pending reports whether a save is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Flush saves a pending shape set right away.
func (d *Debouncer) Flush(ctx context.Context) error {
	d.mu.Lock()
	shapes := d.pending
	d.cancelLocked()
	d.mu.Unlock()

	if shapes == nil {
		return nil
	}
	return d.saver.Save(ctx, d.boardID, shapes)
}

// Stop drops a pending save. Later changes are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.cancelLocked()
}

// Must hold mu.
func (d *Debouncer) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
	d.gen++
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.pending == nil {
		d.mu.Unlock()
		return
	}
	shapes := d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := d.saver.Save(ctx, d.boardID, shapes); err != nil {
		slog.Warn("autosave failed", "board_id", d.boardID, "shapes", len(shapes), "error", err)
	}
}
