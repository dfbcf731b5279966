// Command towerd runs the Affirmation Tower game engine behind a local JSON
// API for the renderer.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talgya/affirmation-tower/internal/api"
	"github.com/talgya/affirmation-tower/internal/cards"
	"github.com/talgya/affirmation-tower/internal/config"
	"github.com/talgya/affirmation-tower/internal/engine"
	"github.com/talgya/affirmation-tower/internal/entropy"
	"github.com/talgya/affirmation-tower/internal/persistence"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	level, _ := cfg.Level()
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	// ── Database ──────────────────────────────────────────────────────
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Engine ────────────────────────────────────────────────────────
	catalog, err := cards.Default()
	if err != nil {
		slog.Error("failed to load card catalog", "error", err)
		os.Exit(1)
	}
	rng, seed := entropy.NewRand(cfg.Seed)
	slog.Info("card catalog loaded", "cards", catalog.Len(), "seed", seed)

	ctx := context.Background()
	game, err := engine.NewGame(ctx, engine.Options{
		Catalog: catalog,
		Store:   persistence.NewStore(db, nil),
		Rand:    rng,
	})
	if err != nil {
		slog.Error("failed to create game", "error", err)
		os.Exit(1)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	apiServer := &api.Server{
		Game:    game,
		Addr:    cfg.HTTPAddr,
		Origins: cfg.CORSOrigins,
		Limiter: api.NewRateLimiter(cfg.ActionRate, time.Minute),
	}
	apiServer.Start()

	// ── Wait ──────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	game.ResetGame() // stop pending timers before the database closes
	slog.Info("stopped")
}
