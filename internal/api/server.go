// Package api exposes the game engine to a local renderer over JSON HTTP.
// GET endpoints observe state; POST and DELETE endpoints invoke engine
// actions and are rate limited per client.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/talgya/affirmation-tower/internal/cards"
	"github.com/talgya/affirmation-tower/internal/engine"
	"github.com/talgya/affirmation-tower/internal/persistence"
)

const maxBodyBytes = 4 << 10

// Server serves the renderer bridge.
type Server struct {
	Game    *engine.Game
	Addr    string
	Origins []string     // Extra CORS origins; localhost dev servers are always allowed
	Limiter *RateLimiter // Applied to mutating requests. Nil disables limiting.

	srv *http.Server
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/state", s.handleState)
	mux.HandleFunc("/api/v1/summary", s.handleSummary)
	mux.HandleFunc("/api/v1/game/start", s.limited(s.handleStart))
	mux.HandleFunc("/api/v1/game/swipe", s.limited(s.handleSwipe))
	mux.HandleFunc("/api/v1/game/end", s.limited(s.handleEnd))
	mux.HandleFunc("/api/v1/game/reset", s.limited(s.handleReset))
	mux.HandleFunc("/api/v1/prefs", s.limited(s.handlePrefs))
	mux.HandleFunc("/api/v1/progress", s.limited(s.handleProgress))

	return corsMiddleware(s.Origins, mux)
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "origins", len(s.Origins))

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	if s.Limiter == nil {
		return next
	}
	return RateLimitMiddleware(s.Limiter, next)
}

// corsMiddleware adds CORS headers for allowed renderer origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, s.Game.Snapshot())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, s.Game.Summary())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Mode cards.Mode `json:"mode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.Game.StartGame(r.Context(), req.Mode); err != nil {
		if errors.Is(err, engine.ErrInvalidMode) {
			http.Error(w, "mode must be DAILY or FREE", http.StatusBadRequest)
			return
		}
		slog.Error("start game failed", "error", err)
		http.Error(w, "start failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.Game.Snapshot())
}

func (s *Server) handleSwipe(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Direction engine.Direction `json:"direction"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Direction.Valid() {
		http.Error(w, "direction must be LEFT or RIGHT", http.StatusBadRequest)
		return
	}

	result := s.Game.SwipeCard(req.Direction)
	writeJSON(w, struct {
		Result engine.Result   `json:"result"`
		State  engine.Snapshot `json:"state"`
	}{result, s.Game.Snapshot()})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Collapsed bool `json:"collapsed"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.Game.EndGame(r.Context(), req.Collapsed)
	writeJSON(w, s.Game.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	s.Game.ResetGame()
	writeJSON(w, s.Game.Snapshot())
}

func (s *Server) handlePrefs(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodPost {
		var patch persistence.PrefsPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		prefs, err := s.Game.UpdatePrefs(r.Context(), patch)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, prefs)
		return
	}
	writeJSON(w, s.Game.Prefs())
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	if r.Method == http.MethodDelete {
		if err := s.Game.ResetProgress(r.Context()); err != nil {
			slog.Error("progress reset failed", "error", err)
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, s.Game.Progress())
}

// allowMethods writes 405 and returns false unless r uses one of methods.
func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

// decodeBody reads a small JSON body into v. An empty body leaves v as is.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
