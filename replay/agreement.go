package replay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brensch/snork/agent"
	"github.com/brensch/snork/api"
	"github.com/brensch/snork/game"
)

func coords(cs []Coord) []api.Coord {
	out := make([]api.Coord, len(cs))
	for i, c := range cs {
		out[i] = api.Coord{X: c.X, Y: c.Y}
	}
	return out
}

func (g *Game) dims(f *Frame) (int, int) {
	if g.Info.Game.Width > 0 && g.Info.Game.Height > 0 {
		return g.Info.Game.Width, g.Info.Game.Height
	}
	return f.Board.Width, f.Board.Height
}

// Request rebuilds the move request the engine sent to snakeID for frame i.
// Dead snakes are left off the board, as the engine does.
func (g *Game) Request(i int, snakeID string) (*api.GameRequest, error) {
	if i < 0 || i >= len(g.Frames) {
		return nil, fmt.Errorf("frame %d of %d", i, len(g.Frames))
	}
	f := &g.Frames[i]
	w, h := g.dims(f)

	req := &api.GameRequest{
		Game: api.Game{
			ID:      g.Info.Game.ID,
			Timeout: g.Info.Game.Timeout,
			Ruleset: api.Ruleset{Name: g.Info.Ruleset.Name, Version: g.Info.Ruleset.Version},
		},
		Turn: f.Turn,
		Board: api.Board{
			Width:   w,
			Height:  h,
			Food:    coords(f.Food),
			Hazards: coords(f.Hazards),
		},
	}

	found := false
	for _, s := range f.Snakes {
		if !s.Alive() {
			continue
		}
		body := coords(s.Body)
		bs := api.Battlesnake{
			ID:      s.ID,
			Name:    s.Name,
			Health:  s.Health,
			Body:    body,
			Head:    body[0],
			Length:  len(body),
			Latency: s.Latency,
		}
		req.Board.Snakes = append(req.Board.Snakes, bs)
		if s.ID == snakeID {
			req.You = bs
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: snake %s is not alive on turn %d", game.ErrInvalidGame, snakeID, f.Turn)
	}
	return req, nil
}

// Played returns the move snakeID made from frame i to frame i+1. It is
// only known when the snake survived the move.
func (g *Game) Played(i int, snakeID string) (game.Direction, bool) {
	if i < 0 || i+1 >= len(g.Frames) {
		return game.Up, false
	}
	before, ok := find(&g.Frames[i], snakeID)
	if !ok {
		return game.Up, false
	}
	after, ok := find(&g.Frames[i+1], snakeID)
	if !ok {
		return game.Up, false
	}
	from := game.Point{X: before.Body[0].X, Y: before.Body[0].Y}
	to := game.Point{X: after.Body[0].X, Y: after.Body[0].Y}
	for _, d := range game.Directions {
		if from.Add(d) == to {
			return d, true
		}
	}
	return game.Up, false
}

func find(f *Frame, id string) (*Snake, bool) {
	for i := range f.Snakes {
		if f.Snakes[i].ID == id && f.Snakes[i].Alive() {
			return &f.Snakes[i], true
		}
	}
	return nil, false
}

// Agreement counts the turns on which an agent chose the played move.
type Agreement struct {
	Turns  int
	Agreed int
}

func (a Agreement) Rate() float64 {
	if a.Turns == 0 {
		return 0
	}
	return float64(a.Agreed) / float64(a.Turns)
}

func (a *Agreement) Add(b Agreement) {
	a.Turns += b.Turns
	a.Agreed += b.Agreed
}

// Agree asks a for a move on every turn snakeID survived and compares it
// with the move actually played.
func Agree(ctx context.Context, g *Game, snakeID string, a agent.Agent, budget time.Duration, log *slog.Logger) (Agreement, error) {
	if log == nil {
		log = slog.Default()
	}
	var (
		out  Agreement
		last *game.Game
	)
	for i := range g.Frames {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		played, ok := g.Played(i, snakeID)
		if !ok {
			continue
		}
		req, err := g.Request(i, snakeID)
		if err != nil {
			return out, err
		}
		state, err := api.NewGame(req)
		if err != nil {
			return out, fmt.Errorf("turn %d: %w", req.Turn, err)
		}
		if last == nil {
			a.Start(state)
		}
		last = state

		chosen := a.Step(ctx, state, budget)
		out.Turns++
		if chosen == played {
			out.Agreed++
		} else {
			log.Debug("disagree", "game", g.Info.Game.ID, "turn", req.Turn, "played", played.String(), "chosen", chosen.String())
		}
	}
	if last != nil {
		a.End(last)
	}
	return out, nil
}
