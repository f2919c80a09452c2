package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"doska/internal/api"
	"doska/internal/config"
)

// CreateBoard asks the running server's admin API to create a board and
// prints its links.
func CreateBoard(name, ownerID string, cfg *config.Config) error {
	reqBody, err := json.Marshal(api.CreateBoardRequest{Name: name, OwnerID: ownerID})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("http://%s/admin/boards", cfg.AdminAddr)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to call admin API: %w. Is the server running?", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to create board (Status: %d): %s", resp.StatusCode, string(body))
	}

	var result api.AdminCreateBoardResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("\nBoard Created Successfully!\n")
	fmt.Printf("Name:       %s\n", result.Board.Name)
	fmt.Printf("ID:         %s\n", result.Board.ID)
	fmt.Printf("Board Link: %s\n", result.BoardURL)
	fmt.Printf("Share Link: %s\n\n", result.ShareURL)
	fmt.Println("Share links open the board read-only.")
	return nil
}
