package game

import "fmt"

// CellKind is the occupancy state of a cell.
type CellKind uint8

const (
	Free CellKind = iota
	Food
	Occupied
)

func (k CellKind) String() string {
	switch k {
	case Free:
		return "free"
	case Food:
		return "food"
	case Occupied:
		return "occupied"
	}
	return fmt.Sprintf("CellKind(%d)", k)
}

// Cell is the state of one board position. Hazard is an overlay and
// varies independently of Kind.
type Cell struct {
	Kind   CellKind
	Hazard bool
}

// Grid is a dense row-major board.
//
// Only points for which Has reports true may be indexed; anything else is a
// programming error and panics.
type Grid struct {
	Width  int
	Height int
	cells  []Cell
}

func NewGrid(width, height int) Grid {
	return Grid{
		Width:  width,
		Height: height,
		cells:  make([]Cell, width*height),
	}
}

// Has reports whether p is on the board.
func (g *Grid) Has(p Point) bool {
	return p.X >= 0 && p.X < g.Width && p.Y >= 0 && p.Y < g.Height
}

func (g *Grid) index(p Point) int {
	if !g.Has(p) {
		panic(fmt.Sprintf("game: point %v outside %dx%d grid", p, g.Width, g.Height))
	}
	return p.Y*g.Width + p.X
}

func (g *Grid) At(p Point) Cell {
	return g.cells[g.index(p)]
}

func (g *Grid) Set(p Point, c Cell) {
	g.cells[g.index(p)] = c
}

// SetKind changes the occupancy of p and keeps its hazard flag.
func (g *Grid) SetKind(p Point, k CellKind) {
	g.cells[g.index(p)].Kind = k
}

func (g *Grid) SetHazard(p Point, hazard bool) {
	g.cells[g.index(p)].Hazard = hazard
}

// AddSnake marks every body point as occupied.
func (g *Grid) AddSnake(body []Point) {
	for _, p := range body {
		g.SetKind(p, Occupied)
	}
}

// AddFood marks points as food.
func (g *Grid) AddFood(points []Point) {
	for _, p := range points {
		g.SetKind(p, Food)
	}
}

func (g *Grid) AddHazards(points []Point) {
	for _, p := range points {
		g.SetHazard(p, true)
	}
}

// Points returns every point whose cell satisfies keep, in row-major order.
func (g *Grid) Points(keep func(Cell) bool) []Point {
	var out []Point
	for i, c := range g.cells {
		if keep(c) {
			out = append(out, Point{X: i % g.Width, Y: i / g.Width})
		}
	}
	return out
}

// Clone performs a deep copy of the grid.
func (g *Grid) Clone() Grid {
	out := Grid{Width: g.Width, Height: g.Height, cells: make([]Cell, len(g.cells))}
	copy(out.cells, g.cells)
	return out
}
