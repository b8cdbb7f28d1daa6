package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kopibar/pos/internal/appstate"
	"github.com/kopibar/pos/internal/cache"
	"github.com/kopibar/pos/internal/config"
	"github.com/kopibar/pos/internal/database"
	"github.com/kopibar/pos/internal/router"
	"github.com/kopibar/pos/internal/ws"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := runMigrations(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
			return err
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	log.Println("Connected to database")

	queries := database.New(pool)

	state := appstate.New(queries)
	if err := state.Load(ctx); err != nil {
		return fmt.Errorf("load app state: %w", err)
	}

	analyticsCache, closeCache, err := newCache(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer closeCache()

	hub := ws.NewHub()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router.New(cfg, queries, pool, state, analyticsCache, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newCache picks Redis when a URL is configured and an in-process TTL map
// otherwise.
func newCache(ctx context.Context, redisURL string) (cache.Cache, func(), error) {
	if redisURL == "" {
		log.Println("Analytics cache: in-memory")
		return cache.NewMemory(), func() {}, nil
	}

	rc, err := cache.NewRedis(ctx, redisURL)
	if err != nil {
		return nil, nil, err
	}
	log.Println("Analytics cache: redis")
	return rc, func() {
		if err := rc.Close(); err != nil {
			log.Printf("ERROR: close redis: %v", err)
		}
	}, nil
}

func runMigrations(path, databaseURL string) error {
	m, err := migrate.New(path, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Println("Migrations applied")
	return nil
}
