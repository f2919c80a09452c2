package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"doska/internal/board"
	"doska/internal/channel"
	"doska/internal/content"
	"doska/internal/models"
	"doska/internal/presence"
	"doska/internal/snapshot"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DeliveryTimeout bounds how long Sticky waits for its edit to reach the relay.
const DeliveryTimeout = 10 * time.Second

type WatchOptions struct {
	BaseURL string
	BoardID string
	// ShareID, when set, resolves the board and polls the shared snapshot.
	ShareID  string
	ClientID string
	// Count stops the watch after that many realtime messages. Zero means forever.
	Count int
	Out   io.Writer
	// Status, when set, receives a line whenever the number of shapes on
	// the board or the set of visible cursors changes.
	Status io.Writer
}

// Watch joins a board as a spectator and prints every realtime message as
// one JSON line. The local board state is kept current from the realtime
// channel and the published snapshot, and its changes go to Status.
func Watch(ctx context.Context, opts WatchOptions) error {
	snapshots := snapshot.NewClient(opts.BaseURL, nil)
	boardID := opts.BoardID
	fetch := snapshots.BoardShapes(boardID)
	if opts.ShareID != "" {
		payload, err := snapshots.ResolveShare(ctx, opts.ShareID)
		if err != nil {
			return fmt.Errorf("failed to resolve share: %w", err)
		}
		boardID = payload.Board.ID
		fetch = snapshots.ShareShapes(opts.ShareID)
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	status := newWatchStatus(opts.Status)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := channel.New(ctx, channel.Options{
		BaseURL:  opts.BaseURL,
		BoardID:  boardID,
		Role:     models.RoleSpectator,
		ClientID: clientID,
	})
	if err != nil {
		return err
	}
	defer ch.Close()

	store := board.NewStore()
	store.OnChange(status.shapesChanged)
	tracker := presence.NewTracker()
	session := channel.NewSession(ch, store, tracker, models.RoleSpectator, clientID)
	defer session.Close()

	var mu sync.Mutex
	seen := 0
	enc := json.NewEncoder(opts.Out)
	unsubscribe := ch.Subscribe(func(msg models.Message) {
		mu.Lock()
		defer mu.Unlock()
		if opts.Count > 0 && seen >= opts.Count {
			return
		}
		if err := enc.Encode(msg); err != nil {
			slog.Warn("failed to print message", "error", err)
		}
		seen++
		if opts.Count > 0 && seen >= opts.Count {
			cancel()
		}
	})
	defer unsubscribe()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return snapshot.NewSpectatorPoller(fetch, store, snapshot.DefaultPollInterval).Run(gCtx)
	})
	g.Go(func() error {
		return presence.NewPoller(presence.NewClient(opts.BaseURL, nil), tracker, boardID).Run(gCtx)
	})
	g.Go(func() error {
		return tracker.Run(gCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(snapshot.DefaultPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			case now := <-ticker.C:
				status.peersChanged(tracker.Visible(models.RoleSpectator, now))
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchStatus writes a line when the shape count or the visible peers
// differ from what it last wrote.
type watchStatus struct {
	out    io.Writer
	mu     sync.Mutex
	shapes int
	peers  string
}

func newWatchStatus(out io.Writer) *watchStatus {
	if out == nil {
		out = io.Discard
	}
	return &watchStatus{out: out, shapes: -1, peers: "none"}
}

func (w *watchStatus) shapesChanged(shapes []models.Shape) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(shapes) == w.shapes {
		return
	}
	w.shapes = len(shapes)
	fmt.Fprintf(w.out, "shapes: %d\n", w.shapes)
}

func (w *watchStatus) peersChanged(peers []models.PresenceState) {
	names := make([]string, 0, len(peers))
	for _, p := range peers {
		names = append(names, p.Name)
	}
	line := "none"
	if len(names) > 0 {
		line = strings.Join(names, ", ")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if line == w.peers {
		return
	}
	w.peers = line
	fmt.Fprintf(w.out, "peers: %s\n", line)
}

type StickyOptions struct {
	BaseURL  string
	BoardID  string
	ClientID string
	Name     string
	Text     string
	X, Y     float64
	Out      io.Writer
}

// Sticky adds a sticky note to a board as an editor: the note is broadcast
// to everyone on the board and saved as the next snapshot.
func Sticky(ctx context.Context, opts StickyOptions) (models.Shape, error) {
	snapshots := snapshot.NewClient(opts.BaseURL, nil)
	payload, err := snapshots.Load(ctx, opts.BoardID)
	if err != nil {
		return models.Shape{}, fmt.Errorf("failed to load board: %w", err)
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	store := board.NewStore()
	store.Load(payload.Snapshot.Shapes)
	saver := snapshot.NewDebouncer(snapshots, opts.BoardID, snapshot.DefaultSaveDelay)
	defer saver.Stop()
	store.OnChange(saver.Changed)

	ch, err := channel.New(ctx, channel.Options{
		BaseURL:  opts.BaseURL,
		BoardID:  opts.BoardID,
		Role:     models.RoleEditor,
		ClientID: clientID,
	})
	if err != nil {
		return models.Shape{}, err
	}
	defer ch.Close()

	session := channel.NewSession(ch, store, presence.NewTracker(), models.RoleEditor, clientID)
	defer session.Close()

	name := opts.Name
	if name == "" {
		name = "doskactl"
	}
	presenceClient := presence.NewClient(opts.BaseURL, nil)
	publisher := presence.NewPublisher(presence.PublisherConfig{
		UserID:    clientID,
		Name:      name,
		Role:      models.RoleEditor,
		Broadcast: session.PublishPresence,
		Persist: func(p models.PresenceState) {
			presenceClient.Put(opts.BoardID, p)
		},
	})
	defer publisher.Stop()
	publisher.Move(&models.Cursor{X: opts.X, Y: opts.Y})

	shape := models.NewShape(uuid.NewString(), models.ShapeKindSticky, opts.X, opts.Y)
	text := content.PlainText(opts.Text)
	shape.Text = &text
	session.CreateShape(shape)

	if err := waitDelivered(ctx, ch); err != nil {
		return models.Shape{}, err
	}
	if err := saver.Flush(ctx); err != nil {
		return models.Shape{}, fmt.Errorf("failed to save board: %w", err)
	}

	if opts.Out != nil {
		fmt.Fprintln(opts.Out, shape.ID)
	}
	return shape, nil
}

// waitDelivered blocks until the channel is open and every queued frame,
// including one mid-write, has been handed to the socket.
func waitDelivered(ctx context.Context, ch *channel.Channel) error {
	ctx, cancel := context.WithTimeout(ctx, DeliveryTimeout)
	defer cancel()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if ch.State() == channel.StateOpen && ch.Pending() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("realtime relay unreachable: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Share creates a read-only share link and prints it.
func Share(ctx context.Context, baseURL, boardID, ownerID string, out io.Writer) (string, error) {
	shareID, err := snapshot.NewClient(baseURL, nil).CreateShare(ctx, boardID, ownerID)
	if err != nil {
		return "", fmt.Errorf("failed to create share: %w", err)
	}
	link := fmt.Sprintf("%s/share/%s", strings.TrimSuffix(baseURL, "/"), shareID)
	fmt.Fprintln(out, link)
	return shareID, nil
}

// Snapshot prints the latest saved snapshot of a board, or of the board
// behind a share link when shareID is set.
func Snapshot(ctx context.Context, baseURL, boardID, shareID string, out io.Writer) error {
	client := snapshot.NewClient(baseURL, nil)

	var (
		payload models.BoardPayload
		err     error
	)
	if shareID != "" {
		payload, err = client.ResolveShare(ctx, shareID)
	} else {
		payload, err = client.Load(ctx, boardID)
	}
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("board not found")
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
