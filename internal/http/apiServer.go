package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"doska/internal/api"
	"doska/internal/presence"
	"doska/internal/relay"
	"doska/internal/snapshot"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type APIServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

// NewAPIServer wires the public API. ctx bounds the lifetime of realtime
// connections, which outlive http.Server.Shutdown once hijacked.
func NewAPIServer(ctx context.Context, repo snapshot.Repository, presenceStore presence.Store, hub *relay.Hub, addr string) *APIServer {
	realtime := relay.NewServer(ctx, hub)
	boards := api.NewBoardsHandler(repo)
	presenceHandler := api.NewPresenceHandler(presenceStore)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/boards", boards.ListBoardsHandler)
		r.Post("/boards", boards.CreateBoardHandler)
		r.Get("/boards/{boardId}", boards.GetBoardHandler)
		r.Patch("/boards/{boardId}", boards.SaveSnapshotHandler)
		r.Post("/boards/{boardId}/share", boards.CreateShareHandler)
		r.Get("/shares/{shareId}", boards.GetShareHandler)

		r.Get("/presence", presenceHandler.ListPresenceHandler)
		r.Post("/presence", presenceHandler.PutPresenceHandler)

		r.Get("/realtime", realtime.HandleConnections)
		r.Get("/realtime/stats", realtime.HandleStats)
	})

	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:    addr,
			Handler: r,
		},
	}
}

func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *APIServer) Start() error {
	slog.Info("API server started", "addr", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
