package game

import "fmt"

// Point is a board coordinate.
// Coordinates follow Battlesnake conventions: (0,0) is bottom-left.
type Point struct {
	X int
	Y int
}

// Add returns p translated one cell in direction d.
func (p Point) Add(d Direction) Point {
	delta := d.Delta()
	return Point{X: p.X + delta.X, Y: p.Y + delta.Y}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Direction is one of the four moves. The numeric value doubles as the
// index into per-direction arrays.
type Direction uint8

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Directions lists every move in index order.
var Directions = [4]Direction{Up, Down, Left, Right}

var directionNames = [4]string{"up", "down", "left", "right"}

// Delta is the unit vector of d.
func (d Direction) Delta() Point {
	switch d {
	case Up:
		return Point{X: 0, Y: 1}
	case Down:
		return Point{X: 0, Y: -1}
	case Left:
		return Point{X: -1, Y: 0}
	case Right:
		return Point{X: 1, Y: 0}
	}
	panic(fmt.Sprintf("game: invalid direction %d", d))
}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return fmt.Sprintf("Direction(%d)", d)
}

// ParseDirection parses the wire name of a move ("up", "down", "left", "right").
func ParseDirection(s string) (Direction, error) {
	for i, name := range directionNames {
		if name == s {
			return Direction(i), nil
		}
	}
	return Up, fmt.Errorf("unknown direction %q", s)
}
