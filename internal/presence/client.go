package presence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"doska/internal/models"
)

const (
	PresencePath = "/api/presence"
	PollInterval = 5 * time.Second
	putTimeout   = 5 * time.Second
)

// PutRequest is the body of POST /api/presence.
type PutRequest struct {
	BoardID string `json:"boardId"`
	models.PresenceState
}

// ListResponse is the body of GET /api/presence.
type ListResponse struct {
	Presence map[string]Entry `json:"presence"`
}

// Client talks to the presence HTTP endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Put persists p in the background. Failures are only logged.
func (c *Client) Put(boardID string, p models.PresenceState) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
		defer cancel()
		if err := c.PutContext(ctx, boardID, p); err != nil {
			slog.Warn("failed to persist presence", "board_id", boardID, "error", err)
		}
	}()
}

func (c *Client) PutContext(ctx context.Context, boardID string, p models.PresenceState) error {
	body, err := json.Marshal(PutRequest{BoardID: boardID, PresenceState: p})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PresencePath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return nil
}

func (c *Client) Fetch(ctx context.Context, boardID string) (map[string]models.PresenceState, error) {
	u := c.baseURL + PresencePath + "?boardId=" + url.QueryEscape(boardID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var body ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode presence: %w", err)
	}

	out := make(map[string]models.PresenceState, len(body.Presence))
	for userID, e := range body.Presence {
		out[userID] = e.PresenceState
	}
	return out, nil
}

type fetcher interface {
	Fetch(ctx context.Context, boardID string) (map[string]models.PresenceState, error)
}

// Poller periodically pulls the persisted presence of a board into a
// Tracker. It covers peers whose realtime updates were missed.
type Poller struct {
	source   fetcher
	tracker  *Tracker
	boardID  string
	interval time.Duration
}

func NewPoller(source fetcher, tracker *Tracker, boardID string) *Poller {
	return &Poller{
		source:   source,
		tracker:  tracker,
		boardID:  boardID,
		interval: PollInterval,
	}
}

// Run polls immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		p.poll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	entries, err := p.source.Fetch(ctx, p.boardID)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("failed to sync presence", "board_id", p.boardID, "error", err)
		}
		return
	}
	p.tracker.Merge(entries)
}
