package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"doska/internal/content"
	"doska/internal/models"
	"doska/internal/snapshot"
	"doska/internal/stubs"

	"github.com/go-chi/chi/v5"
)

// MinBoardNameLength is the shortest accepted board name.
const MinBoardNameLength = 3

type BoardsHandler struct {
	repo snapshot.Repository
}

func NewBoardsHandler(repo snapshot.Repository) *BoardsHandler {
	return &BoardsHandler{repo: repo}
}

type CreateBoardRequest struct {
	Name    string `json:"name"`
	OwnerID string `json:"ownerId,omitempty"`
}

type BoardResponse struct {
	Board models.Board `json:"board"`
}

type BoardsResponse struct {
	Boards []models.Board `json:"boards"`
}

// ownerID identifies the caller. Accounts live outside this service, so
// the owner is passed explicitly and defaults to the demo user.
func ownerID(r *http.Request, fallback string) string {
	if id := r.Header.Get("X-User-Id"); id != "" {
		return id
	}
	if id := r.URL.Query().Get("ownerId"); id != "" {
		return id
	}
	if fallback != "" {
		return fallback
	}
	return stubs.DemoOwnerID
}

func (h *BoardsHandler) ListBoardsHandler(w http.ResponseWriter, r *http.Request) {
	boards, err := h.repo.ListBoards(r.Context(), ownerID(r, ""))
	if err != nil {
		slog.Error("failed to list boards", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Unable to list boards")
		return
	}
	if boards == nil {
		boards = []models.Board{}
	}
	writeJSON(w, http.StatusOK, BoardsResponse{Boards: boards})
}

func (h *BoardsHandler) CreateBoardHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	name := content.PlainText(req.Name)
	if len([]rune(name)) < MinBoardNameLength {
		writeMessage(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	board, err := h.repo.CreateBoard(r.Context(), name, ownerID(r, req.OwnerID))
	if err != nil {
		slog.Error("failed to create board", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Unable to create board")
		return
	}
	writeJSON(w, http.StatusOK, BoardResponse{Board: board})
}

func (h *BoardsHandler) GetBoardHandler(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "boardId")
	payload, err := snapshot.Open(r.Context(), h.repo, boardID)
	if errors.Is(err, models.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Board not found")
		return
	}
	if err != nil {
		slog.Error("failed to load board", "board_id", boardID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Unable to load board")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// SaveSnapshotHandler stores the full shape set as the next snapshot version.
func (h *BoardsHandler) SaveSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "boardId")

	var req struct {
		Shapes *[]models.Shape `json:"shapes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Shapes == nil {
		writeMessage(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	version, err := h.repo.SaveSnapshot(r.Context(), boardID, content.SanitizeShapes(*req.Shapes))
	if errors.Is(err, models.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Board not found")
		return
	}
	if err != nil {
		slog.Error("failed to save snapshot", "board_id", boardID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Unable to save board")
		return
	}
	writeJSON(w, http.StatusOK, snapshot.SaveResponse{OK: true, Version: version})
}

func (h *BoardsHandler) CreateShareHandler(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "boardId")

	var req snapshot.ShareRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid payload")
			return
		}
	}

	owner := strings.TrimSpace(req.CreatedBy)
	if owner == "" {
		owner = r.Header.Get("X-User-Id")
	}
	share, err := h.repo.CreateShare(r.Context(), boardID, owner)
	if err != nil {
		slog.Warn("failed to create share", "board_id", boardID, "error", err)
		writeMessage(w, http.StatusBadRequest, "Unable to generate share link")
		return
	}
	writeJSON(w, http.StatusOK, snapshot.ShareResponse{ShareID: share.ShareID})
}

func (h *BoardsHandler) GetShareHandler(w http.ResponseWriter, r *http.Request) {
	shareID := chi.URLParam(r, "shareId")
	payload, err := h.repo.ResolveShare(r.Context(), shareID)
	if errors.Is(err, models.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Share link not found")
		return
	}
	if err != nil {
		slog.Error("failed to resolve share", "share_id", shareID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Unable to load share")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
