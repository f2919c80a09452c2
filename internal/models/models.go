package models

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidShape    = errors.New("invalid shape")
	ErrInvalidPresence = errors.New("invalid presence")
	ErrInvalidMessage  = errors.New("invalid message")
)

// Board represents board metadata owned by a single user.
type Board struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot is a versioned durable copy of a board's full shape set.
type Snapshot struct {
	BoardID   string    `json:"boardId"`
	Version   int64     `json:"version"`
	Shapes    []Shape   `json:"shapes"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Share is a read-only link to a board.
type Share struct {
	ShareID   string    `json:"shareId"`
	BoardID   string    `json:"boardId"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// BoardPayload is returned when a board is opened either directly or via a share.
type BoardPayload struct {
	Board    Board    `json:"board"`
	Snapshot Snapshot `json:"snapshot"`
}

type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
