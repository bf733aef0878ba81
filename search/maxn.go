// Package search explores the game tree with a max-n search.
//
// One ply is a full simultaneous turn. Within a ply the snakes choose in
// order, snake 0 first, each maximising its own entry of a per-snake value
// vector given the choices made before it. Once every living snake has a
// move the ply is applied to a clone with Step and the search recurses.
package search

import (
	"context"
	"math"

	"github.com/brensch/snork/game"
)

// Sentinel scores. A subtree that certainly wins or loses for a snake is
// scored with these so that callers can stop early.
var (
	Win  = math.Inf(1)
	Loss = math.Inf(-1)
)

// Heuristic scores a position for one snake; higher is better. It must be
// pure and safe for concurrent use, and it is called on positions where the
// snake may already be dead.
type Heuristic interface {
	Eval(g *game.Game, id uint8) float64
}

// HeuristicFunc adapts a function to the Heuristic interface.
type HeuristicFunc func(g *game.Game, id uint8) float64

func (f HeuristicFunc) Eval(g *game.Game, id uint8) float64 {
	return f(g, id)
}

// Values holds one score per snake id.
type Values [game.MaxSnakes]float64

// checkEvery is how many expanded nodes pass between cancellation checks.
const checkEvery = 64

type searcher struct {
	h     Heuristic
	done  <-chan struct{}
	err   func() error
	nodes int
}

// MaxN runs a depth-limited search and returns the value for snake 0 of
// each of its four directions. Directions snake 0 cannot take score Loss.
// depth counts full turns and is at least 1.
func MaxN(g *game.Game, depth int, h Heuristic) [4]float64 {
	s := &searcher{h: h}
	values, _ := s.root(g, depth)
	return values
}

// AsyncMaxN is MaxN with cooperative cancellation. When ctx is done the
// partial result is discarded and ctx.Err() is returned.
func AsyncMaxN(ctx context.Context, g *game.Game, depth int, h Heuristic) ([4]float64, error) {
	s := &searcher{h: h, done: ctx.Done(), err: ctx.Err}
	return s.root(g, depth)
}

func allLoss() [4]float64 {
	return [4]float64{Loss, Loss, Loss, Loss}
}

func (s *searcher) root(g *game.Game, depth int) ([4]float64, error) {
	out := allLoss()
	if s.done != nil {
		select {
		case <-s.done:
			return out, s.err()
		default:
		}
	}
	if depth < 1 {
		depth = 1
	}
	if !g.SnakeIsAlive(0) {
		return out, nil
	}

	order := playOrder(g)
	valid := g.ValidMoves(0)
	for _, d := range game.Directions {
		if !valid[d] {
			continue
		}
		var moves [game.MaxSnakes]game.Direction
		moves[0] = d
		v, err := s.choose(g, depth, order, 1, moves)
		if err != nil {
			return allLoss(), err
		}
		out[d] = v[0]
	}
	return out, nil
}

// node evaluates g with depth plies remaining.
func (s *searcher) node(g *game.Game, depth int) (Values, error) {
	if err := s.cancelled(); err != nil {
		return Values{}, err
	}
	if depth <= 0 || g.Outcome().Kind != game.Ongoing {
		return s.leaf(g), nil
	}
	var moves [game.MaxSnakes]game.Direction
	return s.choose(g, depth, playOrder(g), 0, moves)
}

// choose lets the snake at order[ply] pick its best move given the moves
// already fixed for earlier snakes. When every snake has moved the turn is
// applied to a clone.
func (s *searcher) choose(g *game.Game, depth int, order []uint8, ply int, moves [game.MaxSnakes]game.Direction) (Values, error) {
	if ply == len(order) {
		next := g.Clone()
		next.Step(moves)
		return s.node(next, depth-1)
	}

	id := order[ply]
	valid := g.ValidMoves(id)
	var best Values
	found := false
	for _, d := range game.Directions {
		if !valid[d] {
			continue
		}
		moves[id] = d
		v, err := s.choose(g, depth, order, ply+1, moves)
		if err != nil {
			return Values{}, err
		}
		if !found || v[id] > best[id] {
			best = v
			found = true
		}
	}
	if found {
		return best, nil
	}

	// Trapped: any move kills the snake in Step.
	moves[id] = game.Up
	return s.choose(g, depth, order, ply+1, moves)
}

func (s *searcher) leaf(g *game.Game) Values {
	var v Values
	for i := range v {
		v[i] = Loss
	}
	switch out := g.Outcome(); out.Kind {
	case game.Draw:
		return v
	case game.Won:
		v[out.Winner] = Win
		return v
	}
	for _, snake := range g.Snakes {
		v[snake.ID] = s.h.Eval(g, snake.ID)
	}
	return v
}

func (s *searcher) cancelled() error {
	if s.done == nil {
		return nil
	}
	s.nodes++
	if s.nodes%checkEvery != 0 {
		return nil
	}
	select {
	case <-s.done:
		return s.err()
	default:
		return nil
	}
}

// playOrder lists the living snakes with snake 0 first.
func playOrder(g *game.Game) []uint8 {
	order := make([]uint8, 0, len(g.Snakes))
	if g.SnakeIsAlive(0) {
		order = append(order, 0)
	}
	for _, snake := range g.Snakes {
		if snake.ID != 0 {
			order = append(order, snake.ID)
		}
	}
	return order
}

// Best returns the direction with the highest value; ties go to the lowest
// direction index.
func Best(values [4]float64) (game.Direction, float64) {
	best := game.Up
	for _, d := range game.Directions[1:] {
		if values[d] > values[best] {
			best = d
		}
	}
	return best, values[best]
}
