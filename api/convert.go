package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/brensch/snork/game"
)

// NewGame converts a request into a game in which the requesting snake is
// snake 0. The other snakes follow in request order with ids 1, 2, ...
// Malformed snapshots fail with game.ErrInvalidGame.
func NewGame(req *GameRequest) (*game.Game, error) {
	order, err := SnakeOrder(req)
	if err != nil {
		return nil, err
	}
	return build(req, order)
}

// SnakeOrder returns the board's snake ids in game id order: the requesting
// snake first.
func SnakeOrder(req *GameRequest) ([]string, error) {
	you := -1
	for i, s := range req.Board.Snakes {
		if s.ID == req.You.ID {
			you = i
			break
		}
	}
	if you < 0 {
		return nil, fmt.Errorf("%w: snake %q is not on the board", game.ErrInvalidGame, req.You.ID)
	}
	order := make([]string, 0, len(req.Board.Snakes))
	order = append(order, req.You.ID)
	for i, s := range req.Board.Snakes {
		if i != you {
			order = append(order, s.ID)
		}
	}
	return order, nil
}

// newBoard converts a request whose snake may already be dead, keeping the
// board's order.
func newBoard(req *GameRequest) (*game.Game, error) {
	order := make([]string, len(req.Board.Snakes))
	for i, s := range req.Board.Snakes {
		order[i] = s.ID
	}
	return build(req, order)
}

func build(req *GameRequest, order []string) (*game.Game, error) {
	byID := make(map[string]*Battlesnake, len(req.Board.Snakes))
	for i := range req.Board.Snakes {
		s := &req.Board.Snakes[i]
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate snake %q", game.ErrInvalidGame, s.ID)
		}
		byID[s.ID] = s
	}

	snakes := make([]game.SnakeData, len(order))
	for i, id := range order {
		s := byID[id]
		snakes[i] = game.SnakeData{Health: s.Health, Body: points(s.Body)}
	}

	g, err := game.New(req.Turn, req.Board.Width, req.Board.Height, snakes, points(req.Board.Food), points(req.Board.Hazards))
	if err != nil {
		return nil, fmt.Errorf("game %s turn %d: %w", req.Game.ID, req.Turn, err)
	}
	return g, nil
}

func points(cs []Coord) []game.Point {
	out := make([]game.Point, len(cs))
	for i, c := range cs {
		out[i] = game.Point{X: c.X, Y: c.Y}
	}
	return out
}

// Budget is the time left for a decision: the game timeout, or def when
// the request has none, minus the latency the engine reported for the
// snake's last response, or defLatency when it reported none.
func Budget(req *GameRequest, def, defLatency time.Duration) time.Duration {
	timeout := def
	if req.Game.Timeout > 0 {
		timeout = time.Duration(req.Game.Timeout) * time.Millisecond
	}
	latency := defLatency
	if ms, err := strconv.Atoi(strings.TrimSpace(req.You.Latency)); err == nil && ms > 0 {
		latency = time.Duration(ms) * time.Millisecond
	}
	return timeout - latency
}
