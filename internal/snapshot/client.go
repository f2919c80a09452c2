package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"doska/internal/models"
)

// SaveRequest is the body of PATCH /api/boards/{boardId}.
type SaveRequest struct {
	Shapes []models.Shape `json:"shapes"`
}

type SaveResponse struct {
	OK      bool  `json:"ok"`
	Version int64 `json:"version"`
}

type ShareRequest struct {
	CreatedBy string `json:"createdBy,omitempty"`
}

type ShareResponse struct {
	ShareID string `json:"shareId"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Client talks to the board and share HTTP endpoints.
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

func (c *Client) Save(ctx context.Context, boardID string, shapes []models.Shape) error {
	var resp SaveResponse
	return c.do(ctx, http.MethodPatch, "/api/boards/"+url.PathEscape(boardID), SaveRequest{Shapes: shapes}, &resp)
}

func (c *Client) Load(ctx context.Context, boardID string) (models.BoardPayload, error) {
	var payload models.BoardPayload
	err := c.do(ctx, http.MethodGet, "/api/boards/"+url.PathEscape(boardID), nil, &payload)
	return payload, err
}

func (c *Client) ResolveShare(ctx context.Context, shareID string) (models.BoardPayload, error) {
	var payload models.BoardPayload
	err := c.do(ctx, http.MethodGet, "/api/shares/"+url.PathEscape(shareID), nil, &payload)
	return payload, err
}

func (c *Client) CreateShare(ctx context.Context, boardID, ownerID string) (string, error) {
	var resp ShareResponse
	path := "/api/boards/" + url.PathEscape(boardID) + "/share"
	if err := c.do(ctx, http.MethodPost, path, ShareRequest{CreatedBy: ownerID}, &resp); err != nil {
		return "", err
	}
	return resp.ShareID, nil
}

// ShareShapes fetches the published shape set behind a share link.
func (c *Client) ShareShapes(shareID string) FetchFunc {
	return func(ctx context.Context) ([]models.Shape, error) {
		payload, err := c.ResolveShare(ctx, shareID)
		if err != nil {
			return nil, err
		}
		return payload.Snapshot.Shapes, nil
	}
}

// BoardShapes fetches the latest saved shape set of a board.
func (c *Client) BoardShapes(boardID string) FetchFunc {
	return func(ctx context.Context) ([]models.Shape, error) {
		payload, err := c.Load(ctx, boardID)
		if err != nil {
			return nil, err
		}
		return payload.Snapshot.Shapes, nil
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Message == "" {
			e.Message = resp.Status
		}
		return fmt.Errorf("%s %s: %s", method, path, e.Message)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
