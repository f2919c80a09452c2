package models

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleEditor    Role = "editor"
	RoleSpectator Role = "spectator"
)

func (r Role) Valid() bool {
	return r == RoleEditor || r == RoleSpectator
}

func (r Role) CanEdit() bool {
	return r == RoleEditor
}

// ParseRole is used where trust is required: anything but an explicit
// editor role is a spectator.
func ParseRole(s string) Role {
	if Role(s) == RoleEditor {
		return RoleEditor
	}
	return RoleSpectator
}

// NormalizeRole is used by presence readers: unknown roles read as editor.
func NormalizeRole(r Role) Role {
	if r.Valid() {
		return r
	}
	return RoleEditor
}

type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PresenceState is the ephemeral cursor and identity of one user on one board.
type PresenceState struct {
	UserID string  `json:"userId"`
	Name   string  `json:"name"`
	Color  string  `json:"color"`
	Cursor *Cursor `json:"cursor"`
	// LastSeen is a unix timestamp in milliseconds.
	LastSeen int64 `json:"lastSeen"`
	Role     Role  `json:"role"`
}

func (p PresenceState) LastSeenTime() time.Time {
	return time.UnixMilli(p.LastSeen)
}

// Expired reports whether the entry has not been refreshed within window.
func (p PresenceState) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(p.LastSeenTime()) > window
}

func (p PresenceState) Validate() error {
	switch {
	case strings.TrimSpace(p.UserID) == "":
		return fmt.Errorf("%w: missing userId", ErrInvalidPresence)
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: missing name", ErrInvalidPresence)
	case strings.TrimSpace(p.Color) == "":
		return fmt.Errorf("%w: missing color", ErrInvalidPresence)
	case !p.Role.Valid():
		return fmt.Errorf("%w: unknown role %q", ErrInvalidPresence, p.Role)
	}
	return nil
}

func (p PresenceState) Clone() PresenceState {
	c := p
	if p.Cursor != nil {
		cursor := *p.Cursor
		c.Cursor = &cursor
	}
	return c
}
