// Package arena plays complete games between agents: start positions, food
// and hazard spawning, and many games in parallel with a running tally.
package arena

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/brensch/snork/game"
)

// InitGame places n snakes either in the corners or at the middle of the
// edges, one cell in from the wall, with food at the centre and one food
// diagonally next to each snake where that lands on a border cell.
func InitGame(width, height, n int, rng *rand.Rand, log *slog.Logger) (*game.Game, error) {
	if n < 1 || n > game.MaxSnakes {
		return nil, fmt.Errorf("%w: %d snakes", game.ErrInvalidGame, n)
	}
	if width < 3 || height < 3 {
		return nil, fmt.Errorf("%w: board %dx%d too small", game.ErrInvalidGame, width, height)
	}
	if log == nil {
		log = slog.Default()
	}
	if width%2 == 0 || height%2 == 0 {
		log.Warn("even board dimensions make the start unfair", "width", width, "height", height)
	}
	if width != height {
		log.Warn("non-square board makes the start unfair", "width", width, "height", height)
	}

	var starts [4]game.Point
	if rng.Intn(2) == 0 {
		starts = [4]game.Point{
			{X: 1, Y: 1},
			{X: width - 2, Y: 1},
			{X: width - 2, Y: height - 2},
			{X: 1, Y: height - 2},
		}
	} else {
		starts = [4]game.Point{
			{X: width / 2, Y: 1},
			{X: width - 2, Y: height / 2},
			{X: width / 2, Y: height - 2},
			{X: 1, Y: height / 2},
		}
	}

	snakes := make([]game.SnakeData, n)
	for i, j := range rng.Perm(len(starts))[:n] {
		snakes[i] = game.SnakeData{Health: game.MaxHealth, Body: game.Spawn(starts[j])}
	}

	g, err := game.New(0, width, height, snakes, nil, nil)
	if err != nil {
		return nil, err
	}

	centre := game.Point{X: width / 2, Y: height / 2}
	if g.Grid.At(centre).Kind == game.Free {
		g.Grid.SetKind(centre, game.Food)
	}

	diagonals := [4]game.Point{{X: -1, Y: -1}, {X: -1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: -1}}
	for _, s := range g.Snakes {
		head := s.Head()
		var options []game.Point
		for _, d := range diagonals {
			p := game.Point{X: head.X + d.X, Y: head.Y + d.Y}
			if !g.Grid.Has(p) || g.Grid.At(p).Kind == game.Occupied {
				continue
			}
			// Border cells only, corners excluded.
			onX := p.X == 0 || p.X == width-1
			onY := p.Y == 0 || p.Y == height-1
			if onX != onY {
				options = append(options, p)
			}
		}
		if len(options) > 0 {
			g.Grid.SetKind(options[rng.Intn(len(options))], game.Food)
		}
	}
	return g, nil
}
