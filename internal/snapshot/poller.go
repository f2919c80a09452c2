package snapshot

import (
	"context"
	"log/slog"
	"time"

	"doska/internal/models"
)

type loader interface {
	Load(shapes []models.Shape)
}

// SpectatorPoller replaces a spectator's shape set with the published
// snapshot on every tick. It backs up the realtime feed, which spectators
// may miss while reconnecting.
type SpectatorPoller struct {
	fetch    FetchFunc
	store    loader
	interval time.Duration
}

func NewSpectatorPoller(fetch FetchFunc, store loader, interval time.Duration) *SpectatorPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &SpectatorPoller{fetch: fetch, store: store, interval: interval}
}

func (p *SpectatorPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *SpectatorPoller) poll(ctx context.Context) {
	shapes, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("failed to fetch published snapshot", "error", err)
		}
		return
	}
	if shapes == nil {
		return
	}
	p.store.Load(shapes)
}
