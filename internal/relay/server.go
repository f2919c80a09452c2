package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"doska/internal/content"
	"doska/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Server struct {
	ctx      context.Context
	hub      *Hub
	upgrader *websocket.Upgrader
}

// NewServer returns the upgrade handler. Open connections are closed when
// ctx is done; http.Server.Shutdown does not track hijacked sockets.
func NewServer(ctx context.Context, hub *Hub) *Server {
	return &Server{
		ctx: ctx,
		hub: hub,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // boards are open to anyone holding the link
			},
		},
	}
}

// HandleConnections upgrades GET /api/realtime?boardId=&role=&clientId=.
func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	boardID := q.Get("boardId")
	if err := content.ValidateID(boardID); err != nil {
		http.Error(w, "Invalid boardId", http.StatusBadRequest)
		return
	}
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "Expected websocket", http.StatusUpgradeRequired)
		return
	}

	role := models.ParseRole(q.Get("role"))
	clientID := q.Get("clientId")
	if content.ValidateID(clientID) != nil {
		clientID = uuid.NewString()
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("error upgrading to websocket", "board_id", boardID, "error", err)
		return
	}

	conn := NewConnection(s.hub, ws, boardID, clientID, role, s.hub.Config())
	slog.Debug("peer joined", "board_id", boardID, "client_id", clientID, "role", role)
	if err := conn.Handle(s.ctx); err != nil {
		slog.Info("peer connection closed", "board_id", boardID, "client_id", clientID, "error", err)
	}
}

// HandleStats reports connected peers per board.
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.hub.Stats()); err != nil {
		slog.Error("failed to encode relay stats", "error", err)
	}
}
