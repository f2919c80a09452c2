package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"doska/internal/api"
	"doska/internal/snapshot"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type AdminServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func NewAdminServer(repo snapshot.Repository, baseURL, addr string) *AdminServer {
	adminHandler := api.NewAdminHandler(repo, baseURL)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/admin/boards", adminHandler.CreateBoardHandler)
	r.Get("/admin/boards", adminHandler.ListBoardsHandler)

	if addr == "" {
		addr = "localhost:8081"
	}

	return &AdminServer{
		server: &http.Server{
			Addr:    addr,
			Handler: r,
		},
	}
}

func (s *AdminServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *AdminServer) Start() error {
	slog.Info("Admin API started", "addr", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *AdminServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
