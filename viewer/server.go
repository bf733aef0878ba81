package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brensch/snork/game"
	"github.com/brensch/snork/heuristic"
	"github.com/brensch/snork/search"
	"github.com/brensch/snork/store"
)

const (
	defaultAnalysisDepth = 3
	maxAnalysisDepth     = 5
	analysisTimeout      = 10 * time.Second
)

type Point struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

type Snake struct {
	Seat   int32   `json:"seat"`
	Agent  string  `json:"agent"`
	Alive  bool    `json:"alive"`
	Health int32   `json:"health"`
	Body   []Point `json:"body"`
	Move   string  `json:"move,omitempty"`
}

type Turn struct {
	GameID  string  `json:"game_id"`
	Turn    int32   `json:"turn"`
	Width   int32   `json:"width"`
	Height  int32   `json:"height"`
	Food    []Point `json:"food"`
	Hazards []Point `json:"hazards"`
	Snakes  []Snake `json:"snakes"`
	Outcome string  `json:"outcome"`
	Winner  int32   `json:"winner"`
}

type GamesResponse struct {
	Total int           `json:"total"`
	Games []GameSummary `json:"games"`
}

// MoveValue is the search value of one direction. Value is omitted when the
// direction is a certain win or loss.
type MoveValue struct {
	Direction string   `json:"direction"`
	Value     *float64 `json:"value,omitempty"`
	Outcome   string   `json:"outcome,omitempty"`
}

type Analysis struct {
	GameID string      `json:"game_id"`
	Turn   int32       `json:"turn"`
	Seat   int         `json:"seat"`
	Agent  string      `json:"agent"`
	Depth  int         `json:"depth"`
	Played string      `json:"played,omitempty"`
	Best   string      `json:"best"`
	Values []MoveValue `json:"values"`
}

type Server struct {
	index     *Index
	heuristic search.Heuristic
	log       *slog.Logger
}

func NewServer(index *Index, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{index: index, heuristic: heuristic.NewFlood(), log: log}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/api/games", s.handleGames)
	r.Post("/api/reload", s.handleReload)
	r.Get("/api/games/{id}/turns", s.handleTurns)
	r.Get("/api/games/{id}/turns/{turn}/analysis", s.handleAnalysis)
	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.index.Games()
	if err != nil {
		s.fail(w, err)
		return
	}
	q := r.URL.Query()
	limit := intQuery(r, "limit", len(games))
	offset := intQuery(r, "offset", 0)
	s.writeJSON(w, GamesResponse{
		Total: len(games),
		Games: page(games, limit, offset, q.Get("sort"), q.Get("dir")),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.index.Reload(); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rows, err := s.index.Turns(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	turns := make([]Turn, len(rows))
	for i := range rows {
		turns[i] = toTurn(&rows[i])
	}
	s.writeJSON(w, turns)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	turn, err := strconv.Atoi(chi.URLParam(r, "turn"))
	if err != nil {
		http.Error(w, "bad turn", http.StatusBadRequest)
		return
	}
	rows, err := s.index.Turns(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	var row *store.TurnRow
	for i := range rows {
		if int(rows[i].Turn) == turn {
			row = &rows[i]
			break
		}
	}
	if row == nil {
		http.NotFound(w, r)
		return
	}

	seat := intQuery(r, "seat", 0)
	depth := min(max(intQuery(r, "depth", defaultAnalysisDepth), 1), maxAnalysisDepth)
	g, err := row.Position(seat)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), analysisTimeout)
	defer cancel()
	start := time.Now()
	values, err := search.AsyncMaxN(ctx, g, depth, s.heuristic)
	if err != nil {
		http.Error(w, "analysis did not finish: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	best, _ := search.Best(values)
	s.log.Debug("analysed", "game", id, "turn", turn, "seat", seat, "depth", depth, "elapsed", time.Since(start))

	out := Analysis{
		GameID: id,
		Turn:   row.Turn,
		Seat:   seat,
		Agent:  row.Snakes[seat].Agent,
		Depth:  depth,
		Best:   best.String(),
	}
	if m := row.Snakes[seat].Move; m >= 0 && m < 4 {
		out.Played = game.Direction(m).String()
	}
	for _, d := range game.Directions {
		out.Values = append(out.Values, moveValue(d, values[d]))
	}
	s.writeJSON(w, out)
}

func moveValue(d game.Direction, v float64) MoveValue {
	mv := MoveValue{Direction: d.String()}
	switch {
	case math.IsInf(v, 1):
		mv.Outcome = "win"
	case math.IsInf(v, -1):
		mv.Outcome = "loss"
	default:
		mv.Value = &v
	}
	return mv
}

func toTurn(row *store.TurnRow) Turn {
	t := Turn{
		GameID:  row.GameID,
		Turn:    row.Turn,
		Width:   row.Width,
		Height:  row.Height,
		Food:    zipPoints(row.FoodX, row.FoodY),
		Hazards: zipPoints(row.HazardX, row.HazardY),
		Outcome: row.Outcome,
		Winner:  row.Winner,
	}
	for _, sr := range row.Snakes {
		snake := Snake{
			Seat:   sr.ID,
			Agent:  sr.Agent,
			Alive:  sr.Alive,
			Health: sr.Health,
			Body:   zipPoints(sr.BodyX, sr.BodyY),
		}
		if sr.Move >= 0 && sr.Move < 4 {
			snake.Move = game.Direction(sr.Move).String()
		}
		t.Snakes = append(t.Snakes, snake)
	}
	return t
}

func zipPoints(xs, ys []int32) []Point {
	n := min(len(xs), len(ys))
	out := make([]Point, n)
	for i := range n {
		out[i] = Point{X: xs[i], Y: ys[i]}
	}
	return out
}

func intQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrGameNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.log.Error("viewer request failed", "err", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response", "err", err)
	}
}
