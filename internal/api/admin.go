package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"doska/internal/content"
	"doska/internal/models"
	"doska/internal/snapshot"
	"doska/internal/stubs"
)

// AdminHandler serves the local-only administration API.
type AdminHandler struct {
	repo    snapshot.Repository
	baseURL string
}

func NewAdminHandler(repo snapshot.Repository, baseURL string) *AdminHandler {
	return &AdminHandler{repo: repo, baseURL: baseURL}
}

type AdminCreateBoardResponse struct {
	models.APIResponse
	Board    models.Board `json:"board"`
	BoardURL string       `json:"boardUrl,omitempty"`
	ShareURL string       `json:"shareUrl,omitempty"`
}

// CreateBoardHandler creates a board together with a read-only share link.
func (h *AdminHandler) CreateBoardHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.APIResponse{Message: "Invalid request body"})
		return
	}

	name := content.PlainText(req.Name)
	if len([]rune(name)) < MinBoardNameLength {
		writeJSON(w, http.StatusBadRequest, models.APIResponse{
			Message: fmt.Sprintf("Board name must be at least %d characters", MinBoardNameLength),
		})
		return
	}
	owner := req.OwnerID
	if owner == "" {
		owner = stubs.DemoOwnerID
	}

	board, err := h.repo.CreateBoard(r.Context(), name, owner)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.APIResponse{
			Message: fmt.Sprintf("Failed to create board: %v", err),
		})
		return
	}
	share, err := h.repo.CreateShare(r.Context(), board.ID, owner)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.APIResponse{
			Message: fmt.Sprintf("Failed to create share link: %v", err),
		})
		return
	}

	base := strings.TrimRight(h.baseURL, "/")
	writeJSON(w, http.StatusOK, AdminCreateBoardResponse{
		APIResponse: models.APIResponse{Success: true},
		Board:       board,
		BoardURL:    fmt.Sprintf("%s/boards/%s", base, board.ID),
		ShareURL:    fmt.Sprintf("%s/share/%s", base, share.ShareID),
	})
}

func (h *AdminHandler) ListBoardsHandler(w http.ResponseWriter, r *http.Request) {
	boards, err := h.repo.ListBoards(r.Context(), ownerID(r, ""))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.APIResponse{
			Message: fmt.Sprintf("Failed to list boards: %v", err),
		})
		return
	}
	if boards == nil {
		boards = []models.Board{}
	}
	writeJSON(w, http.StatusOK, BoardsResponse{Boards: boards})
}
