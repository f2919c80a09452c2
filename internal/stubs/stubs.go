package stubs

import (
	"time"

	"doska/internal/models"
)

const (
	DemoBoardID = "demo-board"
	DemoShareID = "demo-share"
	DemoOwnerID = "demo-user"
)

// DemoBoard is seeded into empty storage so share links and spectators
// always have a board to open.
func DemoBoard(now time.Time) models.Board {
	return models.Board{
		ID:        DemoBoardID,
		Name:      "Product Strategy Sprint",
		Slug:      "product-strategy-sprint",
		OwnerID:   DemoOwnerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func DemoShare(now time.Time) models.Share {
	return models.Share{
		ShareID:   DemoShareID,
		BoardID:   DemoBoardID,
		CreatedBy: DemoOwnerID,
		CreatedAt: now,
	}
}
