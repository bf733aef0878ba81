// Package game defines the Battlesnake state machine used by the search.
//
// A Game owns a Grid and the living snakes. The only transition is Step,
// which applies one simultaneous move for every living snake. States are
// cheap to clone so that the search can explore futures without touching
// the caller's copy.
package game

import (
	"errors"
	"fmt"
	"strings"
)

// MaxSnakes is the largest number of snakes a game can hold. Snake ids are
// always below this value.
const MaxSnakes = 4

// MaxHealth is the health of a freshly spawned or just-fed snake.
const MaxHealth = 100

// ErrInvalidGame is returned when a snapshot cannot be turned into a Game.
var ErrInvalidGame = errors.New("invalid game")

// Snake is a living snake. Body runs from tail to head, so the head is the
// last element.
type Snake struct {
	ID     uint8
	Body   []Point
	Health int
}

func (s *Snake) Head() Point {
	return s.Body[len(s.Body)-1]
}

func (s *Snake) Len() int {
	return len(s.Body)
}

// SnakeData describes a snake as it arrives from a request: Body is
// head-first.
type SnakeData struct {
	Health int
	Body   []Point
}

// Game is the authoritative state for one turn.
type Game struct {
	Turn   int
	Snakes []Snake
	Grid   Grid
}

// New builds a game from a snapshot. Snakes receive ids in order.
func New(turn, width, height int, snakes []SnakeData, food, hazards []Point) (*Game, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: board %dx%d", ErrInvalidGame, width, height)
	}
	if len(snakes) > MaxSnakes {
		return nil, fmt.Errorf("%w: %d snakes, at most %d supported", ErrInvalidGame, len(snakes), MaxSnakes)
	}

	g := &Game{
		Turn:   turn,
		Snakes: make([]Snake, 0, len(snakes)),
		Grid:   NewGrid(width, height),
	}

	for _, p := range food {
		if !g.Grid.Has(p) {
			return nil, fmt.Errorf("%w: food %v off board", ErrInvalidGame, p)
		}
	}
	for _, p := range hazards {
		if !g.Grid.Has(p) {
			return nil, fmt.Errorf("%w: hazard %v off board", ErrInvalidGame, p)
		}
	}
	g.Grid.AddFood(food)
	g.Grid.AddHazards(hazards)

	for i, s := range snakes {
		if len(s.Body) == 0 {
			return nil, fmt.Errorf("%w: snake %d has no body", ErrInvalidGame, i)
		}
		if s.Health < 0 || s.Health > MaxHealth {
			return nil, fmt.Errorf("%w: snake %d health %d", ErrInvalidGame, i, s.Health)
		}
		body := make([]Point, len(s.Body))
		for j, p := range s.Body {
			if !g.Grid.Has(p) {
				return nil, fmt.Errorf("%w: snake %d segment %v off board", ErrInvalidGame, i, p)
			}
			body[len(body)-1-j] = p
		}
		g.Grid.AddSnake(body)
		g.Snakes = append(g.Snakes, Snake{ID: uint8(i), Body: body, Health: s.Health})
	}

	return g, nil
}

// Spawn returns the body of a new snake at p: the start cell three times.
func Spawn(p Point) []Point {
	return []Point{p, p, p}
}

// Snake returns the living snake with the given id.
func (g *Game) Snake(id uint8) (*Snake, bool) {
	for i := range g.Snakes {
		if g.Snakes[i].ID == id {
			return &g.Snakes[i], true
		}
	}
	return nil, false
}

func (g *Game) SnakeIsAlive(id uint8) bool {
	_, ok := g.Snake(id)
	return ok
}

// Clone performs a deep copy of the game.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	out := &Game{
		Turn:   g.Turn,
		Snakes: make([]Snake, len(g.Snakes)),
		Grid:   g.Grid.Clone(),
	}
	for i, s := range g.Snakes {
		out.Snakes[i] = Snake{ID: s.ID, Health: s.Health, Body: append([]Point(nil), s.Body...)}
	}
	return out
}

// Perspective returns a clone in which the snake with the given id is
// snake 0 and listed first. The previous snake 0, if alive, takes the id.
// Agents always decide for snake 0.
func (g *Game) Perspective(id uint8) *Game {
	out := g.Clone()
	if id == 0 {
		return out
	}
	for i := range out.Snakes {
		switch out.Snakes[i].ID {
		case id:
			out.Snakes[i].ID = 0
		case 0:
			out.Snakes[i].ID = id
		}
	}
	for i := range out.Snakes {
		if out.Snakes[i].ID == 0 {
			out.Snakes[0], out.Snakes[i] = out.Snakes[i], out.Snakes[0]
			break
		}
	}
	return out
}

// String draws the board top row first. Heads are upper-case letters, other
// segments lower-case, food '*', hazards '~'.
func (g *Game) String() string {
	rows := make([][]byte, g.Grid.Height)
	for y := range rows {
		rows[y] = make([]byte, g.Grid.Width)
		for x := range rows[y] {
			c := g.Grid.At(Point{X: x, Y: y})
			switch {
			case c.Kind == Food:
				rows[y][x] = '*'
			case c.Kind == Occupied:
				rows[y][x] = '#'
			case c.Hazard:
				rows[y][x] = '~'
			default:
				rows[y][x] = '.'
			}
		}
	}
	for _, s := range g.Snakes {
		sym := byte('a' + s.ID)
		for _, p := range s.Body {
			rows[p.Y][p.X] = sym
		}
		h := s.Head()
		rows[h.Y][h.X] = sym - 32
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "turn %d\n", g.Turn)
	for y := g.Grid.Height - 1; y >= 0; y-- {
		sb.Write(rows[y])
		sb.WriteByte('\n')
	}
	for _, s := range g.Snakes {
		fmt.Fprintf(&sb, "snake %d health=%d len=%d\n", s.ID, s.Health, s.Len())
	}
	return sb.String()
}
