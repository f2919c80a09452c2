package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	oshttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"doska/internal/commands"
	"doska/internal/config"
	"doska/internal/http"
	"doska/internal/presence"
	"doska/internal/relay"
	"doska/internal/snapshot"
	"doska/internal/storage"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("doska", flag.ContinueOnError)
	createBoard := flags.String("create-board", "", "Board name to create through the admin API (prints board and share links)")
	owner := flags.String("owner", "", "Owner id of the board created with -create-board")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(cfg)

	if *createBoard != "" {
		return commands.CreateBoard(*createBoard, *owner, cfg)
	}

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	presenceStore, closePresence := openPresenceStore(ctx, cfg)
	defer closePresence()

	hub := relay.NewHub(relay.Config{
		SendBuffer:   cfg.RelaySendBuffer,
		PingInterval: cfg.RelayPingInterval,
		ReadTimeout:  cfg.RelayReadTimeout,
		WriteTimeout: cfg.RelayWriteTimeout,
	})

	adminServer := http.NewAdminServer(repo, cfg.BaseURL, cfg.AdminAddr)
	apiServer := http.NewAPIServer(ctx, repo, presenceStore, hub, cfg.APIAddr)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := adminServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := apiServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("admin server shutdown error", "error", err)
		}
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("API server shutdown error", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func setupLogger(cfg *config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// openRepository uses Postgres when DATABASE_URL is set and the local
// bbolt file otherwise.
func openRepository(ctx context.Context, cfg *config.Config) (snapshot.Repository, func(), error) {
	if cfg.DatabaseURL != "" {
		pool, err := storage.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		pg := storage.NewPostgresStorage(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		slog.Info("using postgres storage")
		return pg, pool.Close, nil
	}

	bb, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("using bbolt storage", "path", cfg.DBFile)
	return bb, func() { _ = bb.Close() }, nil
}

// openPresenceStore prefers Redis with an in-memory fallback. An
// unreachable Redis at startup is not fatal.
func openPresenceStore(ctx context.Context, cfg *config.Config) (presence.Store, func()) {
	memory := presence.NewMemoryStore(ctx)
	if cfg.RedisURL == "" {
		slog.Info("using in-memory presence store")
		return memory, func() {}
	}

	client, err := newRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Warn("redis unavailable, using in-memory presence store", "error", err)
		return memory, func() {}
	}
	slog.Info("using redis presence store")
	return presence.NewFallbackStore(presence.NewRedisStore(client), memory), func() { _ = client.Close() }
}

func newRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	if err := run(ctx, os.Args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}
