// Package channel is the client side of a board's realtime connection.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"doska/internal/models"
	"doska/internal/ring"

	"github.com/gorilla/websocket"
)

const (
	RealtimePath = "/api/realtime"

	DefaultReconnectInterval = 2 * time.Second
	DefaultPingInterval      = 30 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	// OutboundBufferSize is the number of frames kept while disconnected.
	// Older frames are dropped first.
	OutboundBufferSize = 100
)

type State int

const (
	// StateIdle means the channel never connects because it has no base URL.
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Options struct {
	BaseURL  string
	BoardID  string
	Role     models.Role
	ClientID string

	ReconnectInterval time.Duration
	PingInterval      time.Duration
	WriteTimeout      time.Duration
	Dialer            *websocket.Dialer
}

func (o *Options) applyDefaults() {
	if !o.Role.Valid() {
		o.Role = models.RoleEditor
	}
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = DefaultReconnectInterval
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
}

// Listener receives every well-formed inbound message in arrival order.
type Listener func(models.Message)

// Channel is one logical duplex connection to a board relay. It reconnects
// on its own until Close is called and buffers outbound messages while the
// socket is down.
type Channel struct {
	opts Options
	url  string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wake   chan struct{}

	// dispatching is set while listeners run on the read goroutine.
	dispatching atomic.Bool

	mu        sync.Mutex
	state     State
	closed    bool
	outbound  *ring.Buffer[[]byte]
	inflight  int
	listeners []subscription
	nextID    int
}

type subscription struct {
	id int
	fn Listener
}

// New creates the channel and starts connecting in the background.
func New(ctx context.Context, opts Options) (*Channel, error) {
	opts.applyDefaults()
	if opts.BoardID == "" {
		return nil, errors.New("board id is required")
	}

	c := &Channel{
		opts:     opts,
		done:     make(chan struct{}),
		wake:     make(chan struct{}, 1),
		outbound: ring.New[[]byte](OutboundBufferSize),
	}
	c.ctx, c.cancel = context.WithCancel(ctx)

	if opts.BaseURL == "" {
		slog.Warn("realtime channel has no base url, not connecting", "board_id", opts.BoardID)
		close(c.done)
		return c, nil
	}

	u, err := RealtimeURL(opts.BaseURL, opts.BoardID, opts.Role, opts.ClientID)
	if err != nil {
		c.cancel()
		return nil, err
	}
	c.url = u
	c.state = StateConnecting

	go c.run()
	return c, nil
}

// RealtimeURL builds the websocket URL of a board relay from an http(s) or
// ws(s) base URL.
func RealtimeURL(base, boardID string, role models.Role, clientID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + RealtimePath

	q := url.Values{}
	q.Set("boardId", boardID)
	q.Set("role", string(role))
	if clientID != "" {
		q.Set("clientId", clientID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the number of outbound frames not yet written to the
// socket, including a frame whose write is in progress.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outbound.Len() + c.inflight
}

// Send queues msg for delivery. While the socket is open the frame is
// written right away by the connection writer; otherwise it waits in the
// outbound buffer. Send after Close does nothing.
func (c *Channel) Send(msg models.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("dropping unencodable realtime message", "type", msg.Type, "error", err)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if _, evicted := c.outbound.PushBack(data); evicted {
		slog.Debug("outbound buffer full, dropped oldest message", "board_id", c.opts.BoardID)
	}
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Subscribe registers l and returns a function removing it.
func (c *Channel) Subscribe(l Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return func() {}
	}
	id := c.nextID
	c.nextID++
	c.listeners = append(c.listeners, subscription{id: id, fn: l})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.listeners = slices.DeleteFunc(c.listeners, func(s subscription) bool { return s.id == id })
	}
}

// Close stops reconnecting, closes the socket and drops all listeners.
// It returns once the background goroutines have exited, except when called
// from a listener: the read goroutine is then busy running that listener and
// winds down on its own after the listener returns.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.listeners = nil
	c.outbound.Clear()
	c.mu.Unlock()

	c.cancel()
	if !c.dispatching.Load() {
		<-c.done
	}

	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
}

// setState records s unless the channel has been closed.
func (c *Channel) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.state = s
}

func (c *Channel) run() {
	defer close(c.done)

	for {
		c.setState(StateConnecting)
		conn, _, err := c.opts.Dialer.DialContext(c.ctx, c.url, nil)
		if err == nil {
			slog.Debug("realtime channel open", "board_id", c.opts.BoardID, "role", c.opts.Role)
			c.setState(StateOpen)
			err = c.handle(conn)
		}
		if c.ctx.Err() != nil {
			return
		}

		c.setState(StateClosed)
		slog.Info("realtime channel disconnected, reconnecting",
			"board_id", c.opts.BoardID,
			"retry_in", c.opts.ReconnectInterval,
			"error", err,
		)

		timer := time.NewTimer(c.opts.ReconnectInterval)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// handle serves one open socket until it fails or the channel is closed.
func (c *Channel) handle(conn *websocket.Conn) error {
	ctx, cancel := context.WithCancel(c.ctx)
	defer cancel()

	errorCh := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Go(func() {
		errorCh <- c.readLoop(conn)
		cancel()
	})
	wg.Go(func() {
		errorCh <- c.writeLoop(ctx, conn)
		cancel()
	})

	<-ctx.Done()
	if c.ctx.Err() != nil {
		deadline := time.Now().Add(c.opts.WriteTimeout)
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	}
	conn.Close()
	wg.Wait()

	err := <-errorCh
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Channel) readLoop(conn *websocket.Conn) error {
	readTimeout := 2 * c.opts.PingInterval
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("dropping malformed realtime message", "board_id", c.opts.BoardID, "error", err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Channel) dispatch(msg models.Message) {
	c.mu.Lock()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	c.dispatching.Store(true)
	defer c.dispatching.Store(false)
	for _, l := range listeners {
		if c.ctx.Err() != nil {
			return
		}
		l.fn(msg)
	}
}

func (c *Channel) writeLoop(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		if err := c.flush(conn); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// flush writes buffered frames in order. A frame that fails to write is
// put back so it goes out first after reconnecting.
func (c *Channel) flush(conn *websocket.Conn) error {
	for {
		c.mu.Lock()
		frame, ok := c.outbound.PopFront()
		if ok {
			c.inflight++
		}
		c.mu.Unlock()
		if !ok {
			return nil
		}

		conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		err := conn.WriteMessage(websocket.TextMessage, frame)

		c.mu.Lock()
		c.inflight--
		if err != nil && !c.closed {
			c.outbound.PushFront(frame)
		}
		c.mu.Unlock()
		if err != nil {
			return err
		}
	}
}
