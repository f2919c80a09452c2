package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"doska/internal/api"
	"doska/internal/channel"
	"doska/internal/models"
	"doska/internal/presence"
	"doska/internal/snapshot"

	"github.com/stretchr/testify/require"
)

func TestIntegration(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "integration_test.db")

	adminAddr := "127.0.0.1:8888"
	apiAddr := "127.0.0.1:8887"
	baseURL := "http://" + apiAddr

	t.Setenv("DOSKA_DB", dbFile)
	t.Setenv("ADMIN_ADDR", adminAddr)
	t.Setenv("API_ADDR", apiAddr)
	t.Setenv("BASE_URL", baseURL)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- run(ctx, nil)
	}()

	waitForServer(t, fmt.Sprintf("http://%s/admin/boards", adminAddr), 20)
	waitForServer(t, baseURL+"/health", 20)

	// Step 1: create a board via the admin API.
	reqBody, _ := json.Marshal(api.CreateBoardRequest{Name: "Integration Board", OwnerID: "tester"})
	resp, err := http.Post(fmt.Sprintf("http://%s/admin/boards", adminAddr), "application/json", bytes.NewBuffer(reqBody))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created api.AdminCreateBoardResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.True(t, created.Success)
	boardID := created.Board.ID
	require.NotEmpty(t, boardID)

	// Step 2: an editor and a spectator join the board.
	editor, err := channel.New(ctx, channel.Options{BaseURL: baseURL, BoardID: boardID, Role: models.RoleEditor, ClientID: "editor"})
	require.NoError(t, err)
	defer editor.Close()
	spectator, err := channel.New(ctx, channel.Options{BaseURL: baseURL, BoardID: boardID, Role: models.RoleSpectator, ClientID: "spectator"})
	require.NoError(t, err)
	defer spectator.Close()

	received := make(chan models.Message, 16)
	spectator.Subscribe(func(m models.Message) {
		select {
		case received <- m:
		default:
		}
	})

	// Step 3: the spectator's edits never reach the editor.
	editorGot := make(chan models.Message, 16)
	editor.Subscribe(func(m models.Message) {
		select {
		case editorGot <- m:
		default:
		}
	})

	require.Eventually(t, func() bool {
		return editor.State() == channel.StateOpen && spectator.State() == channel.StateOpen
	}, 5*time.Second, 10*time.Millisecond)

	spectator.Send(models.NewShapeCreate(models.NewShape("forged", models.ShapeKindRectangle, 0, 0, 1, 1)))

	shape := models.NewShape("s1", models.ShapeKindSticky, 10, 10)
	require.Eventually(t, func() bool {
		editor.Send(models.NewShapeCreate(shape))
		select {
		case m := <-received:
			return m.Type == models.MessageTypeShapeCreate && m.Shape.ID == "s1"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	select {
	case m := <-editorGot:
		t.Fatalf("editor received a spectator frame: %+v", m)
	case <-time.After(200 * time.Millisecond):
	}

	// Step 4: save and read back through the board API.
	snapshots := snapshot.NewClient(baseURL, nil)
	require.NoError(t, snapshots.Save(ctx, boardID, []models.Shape{shape}))
	shareID, err := snapshots.CreateShare(ctx, boardID, "tester")
	require.NoError(t, err)
	shapes, err := snapshots.ShareShapes(shareID)(ctx)
	require.NoError(t, err)
	require.Len(t, shapes, 1)

	// Step 5: presence round trip.
	presenceClient := presence.NewClient(baseURL, nil)
	require.NoError(t, presenceClient.PutContext(ctx, boardID, models.PresenceState{
		UserID:   "editor",
		Name:     "Editor",
		Color:    "#f97316",
		Cursor:   &models.Cursor{X: 1, Y: 1},
		LastSeen: time.Now().UnixMilli(),
		Role:     models.RoleEditor,
	}))
	entries, err := presenceClient.Fetch(ctx, boardID)
	require.NoError(t, err)
	require.Contains(t, entries, "editor")

	// Step 6: shut down.
	cancel()
	select {
	case err := <-done:
		if err != nil && err != context.Canceled {
			t.Errorf("Server error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunInvalidConfig(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")
	require.Error(t, run(context.Background(), nil))
}

func TestRunUnknownFlag(t *testing.T) {
	require.Error(t, run(context.Background(), []string{"-no-such-flag"}))
}

func waitForServer(t *testing.T, urlStr string, retries int) {
	client := &http.Client{Timeout: 500 * time.Millisecond}

	for i := 0; i < retries; i++ {
		resp, err := client.Get(urlStr)
		if err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("Server failed to start at %s after %d retries", urlStr, retries)
}
