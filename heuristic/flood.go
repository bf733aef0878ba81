// Package heuristic holds position evaluations for the search.
package heuristic

import (
	"github.com/brensch/snork/game"
)

// Dead is the score of a snake that is no longer on the board. It is
// finite so that it still orders below every living evaluation.
const Dead = -1e9

// Weights tunes Flood. Scores are roughly in units of board cells.
type Weights struct {
	// Space rewards cells reachable from the head.
	Space float64
	// Trapped is subtracted when fewer cells are reachable than the body is long.
	Trapped float64
	// Length rewards being longer than the longest opponent.
	Length float64
	// Health rewards health on a 0..1 scale.
	Health float64
	// Food penalises distance to the nearest food once health drops below Hunger.
	Food   float64
	Hunger int
	// Hazard is subtracted while the head sits on a hazard.
	Hazard float64
}

var DefaultWeights = Weights{
	Space:   1,
	Trapped: 50,
	Length:  4,
	Health:  10,
	Food:    1,
	Hunger:  40,
	Hazard:  15,
}

// Flood scores a snake by the area it can still reach, its length advantage
// and how fed it is. It keeps no state between calls.
type Flood struct {
	Weights Weights
}

func NewFlood() Flood {
	return Flood{Weights: DefaultWeights}
}

func (f Flood) Eval(g *game.Game, id uint8) float64 {
	s, ok := g.Snake(id)
	if !ok {
		return Dead
	}
	w := f.Weights
	head := s.Head()

	space := Reachable(&g.Grid, head, g.Grid.Width*g.Grid.Height)
	score := w.Space * float64(space)
	if space < s.Len() {
		score -= w.Trapped
	}

	longest := 0
	for _, other := range g.Snakes {
		if other.ID != id && other.Len() > longest {
			longest = other.Len()
		}
	}
	score += w.Length * float64(s.Len()-longest)
	score += w.Health * float64(s.Health) / game.MaxHealth

	if s.Health < w.Hunger {
		if d, ok := NearestFood(&g.Grid, head); ok {
			score -= w.Food * float64(d)
		} else {
			score -= w.Food * float64(g.Grid.Width+g.Grid.Height)
		}
	}

	if g.Grid.At(head).Hazard {
		score -= w.Hazard
	}
	return score
}

// Reachable counts the cells that are not occupied and can be reached from
// start, stopping at limit. start itself is not counted.
func Reachable(grid *game.Grid, start game.Point, limit int) int {
	seen := make([]bool, grid.Width*grid.Height)
	seen[start.Y*grid.Width+start.X] = true
	queue := []game.Point{start}
	count := 0

	for len(queue) > 0 && count < limit {
		p := queue[0]
		queue = queue[1:]
		for _, d := range game.Directions {
			n := p.Add(d)
			if !grid.Has(n) {
				continue
			}
			i := n.Y*grid.Width + n.X
			if seen[i] || grid.At(n).Kind == game.Occupied {
				continue
			}
			seen[i] = true
			count++
			queue = append(queue, n)
		}
	}
	if count > limit {
		count = limit
	}
	return count
}

// NearestFood returns the Manhattan distance from p to the closest food.
func NearestFood(grid *game.Grid, p game.Point) (int, bool) {
	best := -1
	for _, f := range grid.Points(func(c game.Cell) bool { return c.Kind == game.Food }) {
		d := abs(f.X-p.X) + abs(f.Y-p.Y)
		if best < 0 || d < best {
			best = d
		}
	}
	return best, best >= 0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
