package game

import "fmt"

// OutcomeKind classifies the state of a game.
type OutcomeKind uint8

const (
	Ongoing OutcomeKind = iota
	Draw
	Won
)

// Outcome is derived from the living snakes. Winner is only meaningful
// when Kind is Won.
type Outcome struct {
	Kind   OutcomeKind
	Winner uint8
}

func (o Outcome) String() string {
	switch o.Kind {
	case Ongoing:
		return "ongoing"
	case Draw:
		return "draw"
	}
	return fmt.Sprintf("winner %d", o.Winner)
}

// Outcome reports a draw when nobody is left and a winner when one snake is.
func (g *Game) Outcome() Outcome {
	switch len(g.Snakes) {
	case 0:
		return Outcome{Kind: Draw}
	case 1:
		return Outcome{Kind: Won, Winner: g.Snakes[0].ID}
	}
	return Outcome{Kind: Ongoing}
}

// ValidMoves returns, per direction index, whether the snake could move
// there on the current grid: on the board and not occupied. A dead snake
// has no valid moves.
func (g *Game) ValidMoves(id uint8) [4]bool {
	var moves [4]bool
	s, ok := g.Snake(id)
	if !ok {
		return moves
	}
	head := s.Head()
	for _, d := range Directions {
		p := head.Add(d)
		moves[d] = g.Grid.Has(p) && g.Grid.At(p).Kind != Occupied
	}
	return moves
}

// FirstValidMove returns the lowest-index valid direction for the snake.
func (g *Game) FirstValidMove(id uint8) (Direction, bool) {
	moves := g.ValidMoves(id)
	for _, d := range Directions {
		if moves[d] {
			return d, true
		}
	}
	return Up, false
}

type survivor struct {
	ok     bool
	head   Point
	length int
}

// Step applies one simultaneous move for every living snake. moves is
// indexed by snake id.
//
// The phases run in a fixed order: tails are released first so that a cell
// vacated this turn can be entered, then heads advance and eat, then heads
// that meet are resolved by length, and finally the dead are cleared before
// the survivors' heads are committed to the grid.
func (g *Game) Step(moves [MaxSnakes]Direction) {
	g.Turn++

	var heads [MaxSnakes]Point
	for i := range g.Snakes {
		s := &g.Snakes[i]
		heads[s.ID] = s.Head()
		tail := s.Body[0]
		s.Body = s.Body[1:]
		if len(s.Body) == 0 || s.Body[0] != tail {
			g.Grid.SetKind(tail, Free)
		}
	}

	var survivors [MaxSnakes]survivor
	for i := range g.Snakes {
		s := &g.Snakes[i]
		if s.Health <= 0 {
			continue
		}
		head := heads[s.ID].Add(moves[s.ID])
		if !g.Grid.Has(head) || g.Grid.At(head).Kind == Occupied {
			continue
		}
		ate := g.Grid.At(head).Kind == Food
		s.Body = append(s.Body, head)
		if ate {
			// Growing keeps the tail in place for one more turn.
			s.Body = append([]Point{s.Body[0]}, s.Body...)
			s.Health = MaxHealth
		} else {
			s.Health--
		}
		survivors[s.ID] = survivor{ok: true, head: head, length: len(s.Body)}
	}

	// Heads that meet are judged against the record above, so the result
	// does not depend on snake ids: only a strictly longest snake survives.
	var lost [MaxSnakes]bool
	for i, a := range survivors {
		if !a.ok {
			continue
		}
		for j, b := range survivors {
			if i != j && b.ok && a.head == b.head && b.length >= a.length {
				lost[i] = true
				break
			}
		}
	}
	for i := range survivors {
		if lost[i] {
			survivors[i].ok = false
		}
	}

	alive := g.Snakes[:0]
	for _, s := range g.Snakes {
		if survivors[s.ID].ok {
			alive = append(alive, s)
			continue
		}
		for _, p := range s.Body {
			g.Grid.SetKind(p, Free)
		}
	}
	g.Snakes = alive

	for _, s := range g.Snakes {
		g.Grid.SetKind(survivors[s.ID].head, Occupied)
	}
}
