package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"doska/internal/models"

	"github.com/gorilla/websocket"
)

type wsConnection interface {
	Close() error
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

type messageHub interface {
	Join(boardID, clientID string, role models.Role) *Peer
	Leave(p *Peer)
	Broadcast(from *Peer, frame []byte) int
}

// Connection pumps frames between one socket and the hub.
type Connection struct {
	ws   wsConnection
	hub  messageHub
	peer *Peer
	cfg  Config

	errorCh chan error
}

func NewConnection(hub messageHub, ws wsConnection, boardID, clientID string, role models.Role, cfg Config) *Connection {
	cfg.applyDefaults()
	return &Connection{
		ws:      ws,
		hub:     hub,
		peer:    hub.Join(boardID, clientID, role),
		cfg:     cfg,
		errorCh: make(chan error, 2),
	}
}

// Handle serves the connection until the socket fails or ctx is done.
// The peer leaves the hub and the socket is closed before it returns.
func (c *Connection) Handle(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer func() {
		close(c.errorCh)
		c.hub.Leave(c.peer)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.readPump()
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.writePump(ctx)
		cancel()
	})

	<-ctx.Done()
	c.ws.Close()
	wg.Wait()

	if parent.Err() != nil {
		return nil
	}
	err := <-c.errorCh
	if err == nil || errors.Is(err, context.Canceled) || isClosure(err) {
		return nil
	}
	return err
}

func isClosure(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

func (c *Connection) readPump() error {
	c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		if !c.allowed(frame) {
			continue
		}
		c.hub.Broadcast(c.peer, frame)
	}
}

// allowed applies the role rules to an inbound frame. Editor frames are
// relayed verbatim, even when they do not parse.
func (c *Connection) allowed(frame []byte) bool {
	if c.peer.Role.CanEdit() {
		return true
	}
	t, err := models.TypeOf(frame)
	if err != nil {
		slog.Debug("dropping malformed spectator frame", "board_id", c.peer.BoardID, "client_id", c.peer.ClientID)
		return false
	}
	return !models.IsEditorOnly(t)
}

func (c *Connection) writePump(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.peer.Messages():
			if !ok {
				return nil
			}
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
