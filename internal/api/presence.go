package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"doska/internal/content"
	"doska/internal/models"
	"doska/internal/presence"
)

type PresenceHandler struct {
	store presence.Store
	now   func() time.Time
}

func NewPresenceHandler(store presence.Store) *PresenceHandler {
	return &PresenceHandler{store: store, now: time.Now}
}

// ListPresenceHandler returns every live presence entry of a board. A
// failing store reads as an empty board.
func (h *PresenceHandler) ListPresenceHandler(w http.ResponseWriter, r *http.Request) {
	boardID := r.URL.Query().Get("boardId")
	if err := content.ValidateID(boardID); err != nil {
		writeMessage(w, http.StatusBadRequest, "boardId is required")
		return
	}

	entries, err := h.store.Get(r.Context(), boardID)
	if err != nil {
		slog.Warn("failed to read presence", "board_id", boardID, "error", err)
		entries = map[string]presence.Entry{}
	}
	writeJSON(w, http.StatusOK, presence.ListResponse{Presence: entries})
}

func (h *PresenceHandler) PutPresenceHandler(w http.ResponseWriter, r *http.Request) {
	var req presence.PutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if err := content.ValidateID(req.BoardID); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	p := req.PresenceState
	p.Name = content.PlainText(p.Name)
	if p.Role == "" {
		p.Role = models.RoleEditor
	}
	if err := p.Validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	if err := h.store.Put(r.Context(), req.BoardID, presence.NewEntry(p, h.now())); err != nil {
		slog.Error("failed to store presence", "board_id", req.BoardID, "user_id", p.UserID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Unable to store presence")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
