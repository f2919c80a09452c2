// Package relay fans realtime messages out to every peer connected to the
// same board.
package relay

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"doska/internal/models"
)

type Config struct {
	// SendBuffer is the outbound queue length of every peer. A frame for a
	// peer whose queue is full is dropped for that peer only.
	SendBuffer   int
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// Peer is one connected socket on one board.
type Peer struct {
	ClientID string
	BoardID  string
	Role     models.Role

	send chan []byte
}

// Messages returns the frames queued for this peer. The channel is closed
// when the peer leaves.
func (p *Peer) Messages() <-chan []byte {
	return p.send
}

type boardPeers struct {
	peers map[*Peer]struct{}
	mu    sync.RWMutex
}

// Hub is the registry of boards with at least one connected peer.
type Hub struct {
	cfg Config

	boards map[string]*boardPeers
	mu     sync.Mutex
}

func NewHub(cfg Config) *Hub {
	cfg.applyDefaults()
	return &Hub{
		cfg:    cfg,
		boards: make(map[string]*boardPeers),
	}
}

func (h *Hub) Config() Config {
	return h.cfg
}

// Join registers a peer, creating the board entry on first use.
func (h *Hub) Join(boardID, clientID string, role models.Role) *Peer {
	p := &Peer{
		ClientID: clientID,
		BoardID:  boardID,
		Role:     role,
		send:     make(chan []byte, h.cfg.SendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.boards[boardID]
	if !ok {
		b = &boardPeers{peers: make(map[*Peer]struct{})}
		h.boards[boardID] = b
		slog.Debug("board channel created", "board_id", boardID)
	}
	b.mu.Lock()
	b.peers[p] = struct{}{}
	b.mu.Unlock()
	return p
}

// Leave unregisters p and closes its queue. The board entry is removed
// with its last peer.
func (h *Hub) Leave(p *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.boards[p.BoardID]
	if !ok {
		return
	}

	b.mu.Lock()
	if _, ok := b.peers[p]; ok {
		delete(b.peers, p)
		close(p.send)
	}
	empty := len(b.peers) == 0
	b.mu.Unlock()

	if empty {
		delete(h.boards, p.BoardID)
		slog.Debug("board channel removed", "board_id", p.BoardID)
	}
}

func (h *Hub) board(boardID string) *boardPeers {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.boards[boardID]
}

// Broadcast queues frame for every peer on the sender's board except the
// sender. It returns the number of peers the frame was queued for.
func (h *Hub) Broadcast(from *Peer, frame []byte) int {
	b := h.board(from.BoardID)
	if b == nil {
		return 0
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for p := range b.peers {
		if p == from {
			continue
		}
		select {
		case p.send <- frame:
			delivered++
		default:
			slog.Warn("peer queue full, dropping frame", "board_id", p.BoardID, "client_id", p.ClientID)
		}
	}
	return delivered
}

type BoardStats struct {
	BoardID    string `json:"boardId"`
	Editors    int    `json:"editors"`
	Spectators int    `json:"spectators"`
}

// Stats returns peer counts per board ordered by board id.
func (h *Hub) Stats() []BoardStats {
	h.mu.Lock()
	boards := make(map[string]*boardPeers, len(h.boards))
	for id, b := range h.boards {
		boards[id] = b
	}
	h.mu.Unlock()

	stats := make([]BoardStats, 0, len(boards))
	for id, b := range boards {
		s := BoardStats{BoardID: id}
		b.mu.RLock()
		for p := range b.peers {
			if p.Role.CanEdit() {
				s.Editors++
			} else {
				s.Spectators++
			}
		}
		b.mu.RUnlock()
		stats = append(stats, s)
	}
	slices.SortFunc(stats, func(a, b BoardStats) int { return strings.Compare(a.BoardID, b.BoardID) })
	return stats
}

// BoardCount is the number of boards with at least one peer.
func (h *Hub) BoardCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.boards)
}
