package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brensch/snork/agent"
	"github.com/brensch/snork/game"
)

// ErrGameNotStarted is reported for turns of a game the server has no
// session for.
var ErrGameNotStarted = errors.New("game not started")

type Options struct {
	Info InfoResponse
	// MoveTimeout is used when a request carries no game timeout.
	MoveTimeout time.Duration
	// Latency is assumed when the engine has not reported one yet.
	Latency time.Duration
	Log     *slog.Logger
}

var DefaultOptions = Options{
	Info:        InfoResponse{APIVersion: "1", Author: "snork", Color: "#ff7f50", Head: "default", Tail: "default", Version: "1.0.0"},
	MoveTimeout: 500 * time.Millisecond,
	Latency:     100 * time.Millisecond,
}

// decider is implemented by agents that can explain their move.
type decider interface {
	Decide(ctx context.Context, g *game.Game, budget time.Duration) agent.Decision
}

type handler struct {
	newAgent func() agent.Agent
	opts     Options
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[string]agent.Agent
}

// Router serves the Battlesnake endpoints. Every game and snake gets its own
// agent from newAgent, created on /start and dropped on /end.
func Router(newAgent func() agent.Agent, opts Options) http.Handler {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.MoveTimeout <= 0 {
		opts.MoveTimeout = DefaultOptions.MoveTimeout
	}
	if opts.Info.APIVersion == "" {
		opts.Info = DefaultOptions.Info
	}
	h := &handler{newAgent: newAgent, opts: opts, log: opts.Log, sessions: map[string]agent.Agent{}}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Log))
	r.Use(middleware.Recoverer)

	r.Get("/", h.Info)
	r.Post("/start", h.Start)
	r.Post("/move", h.Move)
	r.Post("/end", h.End)
	return r
}

func sessionKey(req *GameRequest) string {
	return req.Game.ID + "/" + req.You.ID
}

// session returns the agent for the request. With create it makes one when
// none exists; created reports whether it did.
func (h *handler) session(req *GameRequest, create bool) (a agent.Agent, created bool) {
	key := sessionKey(req)
	h.mu.Lock()
	defer h.mu.Unlock()
	if a, ok := h.sessions[key]; ok {
		return a, false
	}
	if !create {
		return nil, false
	}
	a = h.newAgent()
	h.sessions[key] = a
	return a, true
}

func (h *handler) drop(req *GameRequest) (agent.Agent, bool) {
	key := sessionKey(req)
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.sessions[key]
	delete(h.sessions, key)
	return a, ok
}

func decode(w http.ResponseWriter, r *http.Request, log *slog.Logger) (*GameRequest, *game.Game, bool) {
	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to decode request", "err", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return nil, nil, false
	}
	g, err := NewGame(&req)
	if err != nil {
		log.Warn("invalid game", "game", req.Game.ID, "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, nil, false
	}
	return &req, g, true
}

func (h *handler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, &h.opts.Info)
}

func (h *handler) Start(w http.ResponseWriter, r *http.Request) {
	req, g, ok := decode(w, r, h.log)
	if !ok {
		return
	}
	a, created := h.session(req, true)
	if !created {
		h.log.Warn("game restarted", "game", req.Game.ID, "snake", req.You.ID)
	}
	a.Start(g)
	h.log.Info("game start", "game", req.Game.ID, "snake", req.You.Name, "snakes", len(g.Snakes), "timeout", req.Game.Timeout)
	w.WriteHeader(http.StatusOK)
}

func (h *handler) Move(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, g, ok := decode(w, r, h.log)
	if !ok {
		return
	}

	// A restarted server still answers running games.
	a, created := h.session(req, true)
	if created {
		h.log.Warn("move without start", "game", req.Game.ID, "snake", req.You.ID, "err", ErrGameNotStarted)
		a.Start(g)
	}

	budget := Budget(req, h.opts.MoveTimeout, h.opts.Latency)
	log := h.log.With("game", req.Game.ID, "turn", req.Turn)

	var move game.Direction
	if d, ok := a.(decider); ok {
		dec := d.Decide(r.Context(), g, budget)
		move = dec.Direction
		log.Info("move", "move", move.String(), "path", string(dec.Path), "depth", dec.Depth, "value", dec.Value, "budget", budget, "elapsed", time.Since(start))
	} else {
		move = a.Step(r.Context(), g, budget)
		log.Info("move", "move", move.String(), "budget", budget, "elapsed", time.Since(start))
	}

	writeJSON(w, h.log, &MoveResponse{Move: move.String()})
}

func (h *handler) End(w http.ResponseWriter, r *http.Request) {
	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("failed to decode request", "err", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	a, ok := h.drop(&req)
	if !ok {
		h.log.Warn("end without start", "game", req.Game.ID, "snake", req.You.ID)
		http.Error(w, ErrGameNotStarted.Error(), http.StatusBadRequest)
		return
	}

	// The snake may be dead, so keep the board's order.
	g, err := newBoard(&req)
	if err != nil {
		h.log.Warn("invalid game", "game", req.Game.ID, "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.End(g)

	result := "lost"
	for _, s := range req.Board.Snakes {
		if s.ID == req.You.ID {
			result = "won"
		}
	}
	if len(req.Board.Snakes) == 0 {
		result = "draw"
	}
	h.log.Info("game end", "game", req.Game.ID, "turn", req.Turn, "result", result)
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to write response", "err", err)
	}
}

// requestLogger logs one line per request at debug level.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				"id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"remote", r.RemoteAddr,
				"elapsed", time.Since(start),
			)
		})
	}
}
