package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logStep(t *testing.T, label string, before *Game, moves [MaxSnakes]Direction, after *Game) {
	t.Helper()
	t.Logf("%s\n  BEFORE (moves=%v):\n%s  AFTER:\n%s", label, moves, before, after)
}

// step clones g, applies moves and logs both boards.
func step(t *testing.T, label string, g *Game, moves ...Direction) *Game {
	t.Helper()
	var all [MaxSnakes]Direction
	copy(all[:], moves)
	after := g.Clone()
	after.Step(all)
	logStep(t, label, g, all, after)
	requireConsistent(t, after)
	return after
}

// requireConsistent checks that the occupied cells are exactly the union of
// the living snakes' bodies.
func requireConsistent(t *testing.T, g *Game) {
	t.Helper()
	bodies := make(map[Point]bool)
	for _, s := range g.Snakes {
		for _, p := range s.Body {
			bodies[p] = true
		}
	}
	occupied := g.Grid.Points(func(c Cell) bool { return c.Kind == Occupied })
	require.Len(t, occupied, len(bodies), "occupied cells vs body cells\n%s", g)
	for _, p := range occupied {
		require.True(t, bodies[p], "occupied cell %v not on any body\n%s", p, g)
	}
}

func twoSnakes(t *testing.T, food []Point) *Game {
	t.Helper()
	g, err := New(0, 11, 11, []SnakeData{
		{Health: 100, Body: []Point{{4, 8}, {4, 7}, {4, 6}}},
		{Health: 100, Body: []Point{{6, 8}, {6, 7}, {6, 6}}},
	}, food, nil)
	require.NoError(t, err)
	return g
}

func TestNew_NormalisesBodyTailFirst(t *testing.T) {
	g := twoSnakes(t, nil)

	s, ok := g.Snake(0)
	require.True(t, ok)
	assert.Equal(t, []Point{{4, 6}, {4, 7}, {4, 8}}, s.Body)
	assert.Equal(t, Point{4, 8}, s.Head())
	assert.Equal(t, Occupied, g.Grid.At(Point{4, 7}).Kind)
	requireConsistent(t, g)
}

func TestNew_RejectsMalformedSnapshots(t *testing.T) {
	cases := []struct {
		name    string
		w, h    int
		snakes  []SnakeData
		food    []Point
		hazards []Point
	}{
		{name: "zero width", w: 0, h: 11},
		{name: "negative height", w: 11, h: -1},
		{name: "too many snakes", w: 11, h: 11, snakes: []SnakeData{
			{Health: 1, Body: []Point{{0, 0}}}, {Health: 1, Body: []Point{{1, 0}}},
			{Health: 1, Body: []Point{{2, 0}}}, {Health: 1, Body: []Point{{3, 0}}},
			{Health: 1, Body: []Point{{4, 0}}},
		}},
		{name: "empty body", w: 11, h: 11, snakes: []SnakeData{{Health: 100}}},
		{name: "body off board", w: 11, h: 11, snakes: []SnakeData{{Health: 100, Body: []Point{{11, 0}}}}},
		{name: "health too high", w: 11, h: 11, snakes: []SnakeData{{Health: 101, Body: []Point{{1, 1}}}}},
		{name: "food off board", w: 11, h: 11, food: []Point{{-1, 3}}},
		{name: "hazard off board", w: 5, h: 5, hazards: []Point{{2, 5}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(0, tc.w, tc.h, tc.snakes, tc.food, tc.hazards)
			assert.ErrorIs(t, err, ErrInvalidGame)
		})
	}
}

func TestStep_NormalMove(t *testing.T) {
	g := twoSnakes(t, nil)
	after := step(t, "both move right", g, Right, Right)

	require.True(t, after.SnakeIsAlive(0))
	require.True(t, after.SnakeIsAlive(1))
	assert.Equal(t, Free, after.Grid.At(Point{4, 6}).Kind)
	assert.Equal(t, Occupied, after.Grid.At(Point{5, 8}).Kind)
	assert.Equal(t, Free, after.Grid.At(Point{6, 6}).Kind)
	assert.Equal(t, Occupied, after.Grid.At(Point{7, 8}).Kind)
	s, _ := after.Snake(0)
	assert.Equal(t, 99, s.Health)
	assert.Equal(t, 1, after.Turn)

	// Snake 0 now runs into snake 1's body.
	after = step(t, "snake 0 hits body", after, Right, Right)
	assert.False(t, after.SnakeIsAlive(0))
	assert.Equal(t, Free, after.Grid.At(Point{5, 8}).Kind)
	assert.True(t, after.SnakeIsAlive(1))
	assert.Equal(t, Occupied, after.Grid.At(Point{8, 8}).Kind)
	assert.Equal(t, Outcome{Kind: Won, Winner: 1}, after.Outcome())
}

func TestStep_HeadToHeadEqualLengthIsDraw(t *testing.T) {
	g := twoSnakes(t, nil)
	after := step(t, "head to head", g, Right, Left)

	assert.False(t, after.SnakeIsAlive(0))
	assert.False(t, after.SnakeIsAlive(1))
	for _, p := range []Point{{4, 6}, {4, 7}, {4, 8}, {6, 6}, {6, 7}, {6, 8}, {5, 8}} {
		assert.Equal(t, Free, after.Grid.At(p).Kind, "cell %v", p)
	}
	assert.Equal(t, Outcome{Kind: Draw}, after.Outcome())
}

func TestStep_HeadToHeadLongerSurvives(t *testing.T) {
	for _, longer := range []int{0, 1} {
		bodies := [][]Point{
			{{4, 8}, {4, 7}, {4, 6}},
			{{6, 8}, {6, 7}, {6, 6}},
		}
		bodies[longer] = append(bodies[longer], bodies[longer][2].Add(Down))
		g, err := New(0, 11, 11, []SnakeData{
			{Health: 100, Body: bodies[0]},
			{Health: 100, Body: bodies[1]},
		}, nil, nil)
		require.NoError(t, err)

		after := step(t, "longer snake wins", g, Right, Left)
		require.Equal(t, Outcome{Kind: Won, Winner: uint8(longer)}, after.Outcome())
		s, _ := after.Snake(uint8(longer))
		assert.Equal(t, Point{5, 8}, s.Head())
		assert.Equal(t, Occupied, after.Grid.At(Point{5, 8}).Kind)
	}
}

// threeWay builds three snakes whose heads all move into (5,5). The snake
// coming from below is listed at index first.
func threeWay(t *testing.T, first int, leftLen, rightLen, downLen int) (*Game, [MaxSnakes]Direction) {
	t.Helper()
	line := func(head, step Point, n int) []Point {
		body := make([]Point, n)
		for i := range body {
			body[i] = Point{head.X + i*step.X, head.Y + i*step.Y}
		}
		return body
	}
	type entry struct {
		body []Point
		move Direction
	}
	entries := []entry{
		{line(Point{4, 5}, Point{-1, 0}, leftLen), Right},
		{line(Point{6, 5}, Point{1, 0}, rightLen), Left},
	}
	down := entry{line(Point{5, 4}, Point{0, -1}, downLen), Up}
	entries = append(entries[:first], append([]entry{down}, entries[first:]...)...)

	var (
		data  []SnakeData
		moves [MaxSnakes]Direction
	)
	for i, e := range entries {
		data = append(data, SnakeData{Health: 100, Body: e.body})
		moves[i] = e.move
	}
	g, err := New(0, 11, 11, data, nil, nil)
	require.NoError(t, err)
	return g, moves
}

func TestStep_ThreeWayHeadToHead(t *testing.T) {
	for _, first := range []int{0, 2} {
		// Two equal longest snakes kill each other and the shorter one.
		g, moves := threeWay(t, first, 4, 4, 3)
		after := g.Clone()
		after.Step(moves)
		logStep(t, "equal longest", g, moves, after)
		requireConsistent(t, after)
		assert.Equal(t, Outcome{Kind: Draw}, after.Outcome(), "short snake at %d", first)
		assert.Equal(t, Free, after.Grid.At(Point{5, 5}).Kind)

		// A strictly longest snake beats both others.
		g, moves = threeWay(t, first, 5, 3, 3)
		after = g.Clone()
		after.Step(moves)
		logStep(t, "strictly longest", g, moves, after)
		requireConsistent(t, after)
		winner := uint8(0)
		if first == 0 {
			winner = 1
		}
		assert.Equal(t, Outcome{Kind: Won, Winner: winner}, after.Outcome(), "short snake at %d", first)
		assert.Equal(t, Occupied, after.Grid.At(Point{5, 5}).Kind)
	}
}

func TestStep_EatingGrowsAndKeepsTail(t *testing.T) {
	g := twoSnakes(t, []Point{{4, 9}})
	after := step(t, "eat", g, Up, Up)

	s, _ := after.Snake(0)
	assert.Equal(t, 100, s.Health)
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, Point{4, 7}, s.Body[0])
	assert.Equal(t, Point{4, 7}, s.Body[1])
	assert.Equal(t, Occupied, after.Grid.At(Point{4, 9}).Kind)

	// The duplicated tail does not move on the next turn, so its cell stays occupied.
	after = step(t, "after eating", after, Up, Up)
	s, _ = after.Snake(0)
	assert.Equal(t, Point{4, 7}, s.Body[0])
	assert.Equal(t, Occupied, after.Grid.At(Point{4, 7}).Kind)
	assert.Equal(t, 4, s.Len())
}

func TestStep_TailCellCanBeEnteredSameTurn(t *testing.T) {
	// A snake chasing its own tail in a 2x2 loop.
	g, err := New(0, 5, 5, []SnakeData{
		{Health: 50, Body: []Point{{1, 1}, {1, 2}, {2, 2}, {2, 1}}},
		{Health: 50, Body: []Point{{4, 4}}},
	}, nil, nil)
	require.NoError(t, err)

	after := step(t, "chase tail", g, Right, Down)
	assert.True(t, after.SnakeIsAlive(0))
	s, _ := after.Snake(0)
	assert.Equal(t, Point{2, 1}, s.Head())
}

func TestStep_Starvation(t *testing.T) {
	g, err := New(0, 11, 11, []SnakeData{
		{Health: 1, Body: []Point{{1, 1}, {1, 0}, {0, 0}}},
		{Health: 1, Body: []Point{{8, 8}, {8, 7}, {8, 6}}},
	}, []Point{{1, 2}}, nil)
	require.NoError(t, err)

	after := step(t, "one eats, one does not", g, Up, Up)
	fed, ok := after.Snake(0)
	require.True(t, ok)
	assert.Equal(t, 100, fed.Health)
	assert.Equal(t, 4, fed.Len())

	hungry, ok := after.Snake(1)
	require.True(t, ok, "health 0 is eliminated on the next step, not this one")
	assert.Equal(t, 0, hungry.Health)

	after = step(t, "starved", after, Up, Up)
	assert.False(t, after.SnakeIsAlive(1))
	assert.Equal(t, Outcome{Kind: Won, Winner: 0}, after.Outcome())
}

func TestStep_WallCollision(t *testing.T) {
	g, err := New(0, 3, 3, []SnakeData{
		{Health: 100, Body: []Point{{0, 2}, {0, 1}, {0, 0}}},
		{Health: 100, Body: []Point{{2, 0}}},
	}, nil, nil)
	require.NoError(t, err)

	after := step(t, "wall", g, Up, Up)
	assert.False(t, after.SnakeIsAlive(0))
	assert.True(t, after.SnakeIsAlive(1))
}

func TestStep_EveryoneDiesIsDraw(t *testing.T) {
	g, err := New(0, 3, 3, []SnakeData{
		{Health: 100, Body: []Point{{0, 2}, {0, 1}}},
		{Health: 100, Body: []Point{{2, 2}, {2, 1}}},
		{Health: 0, Body: []Point{{1, 0}}},
	}, nil, nil)
	require.NoError(t, err)

	after := step(t, "all die", g, Up, Up, Up)
	assert.Empty(t, after.Snakes)
	assert.Equal(t, Outcome{Kind: Draw}, after.Outcome())
}

func TestStep_FoodAndHazardIndependent(t *testing.T) {
	g, err := New(0, 5, 5, []SnakeData{
		{Health: 10, Body: []Point{{2, 1}, {2, 0}}},
		{Health: 10, Body: []Point{{4, 4}}},
	}, []Point{{2, 3}}, []Point{{2, 3}, {0, 0}})
	require.NoError(t, err)
	assert.Equal(t, Cell{Kind: Food, Hazard: true}, g.Grid.At(Point{2, 3}))

	after := step(t, "toward hazard food", g, Up, Down)
	after = step(t, "eat hazard food", after, Up, Down)
	assert.Equal(t, Cell{Kind: Occupied, Hazard: true}, after.Grid.At(Point{2, 3}))
	s, _ := after.Snake(0)
	assert.Equal(t, 100, s.Health)
}

func TestValidMoves(t *testing.T) {
	g := twoSnakes(t, nil)
	assert.Equal(t, [4]bool{true, false, true, true}, g.ValidMoves(0))
	assert.Equal(t, [4]bool{}, g.ValidMoves(3))

	corner, err := New(0, 3, 3, []SnakeData{
		{Health: 100, Body: []Point{{0, 0}, {0, 1}, {1, 1}, {1, 0}}},
		{Health: 100, Body: []Point{{2, 2}}},
	}, nil, nil)
	require.NoError(t, err)
	// Tail at (1,0) is still occupied before the step.
	assert.Equal(t, [4]bool{false, false, false, false}, corner.ValidMoves(0))
	_, ok := corner.FirstValidMove(0)
	assert.False(t, ok)

	d, ok := g.FirstValidMove(0)
	assert.True(t, ok)
	assert.Equal(t, Up, d)
}

func TestStep_DoesNotTouchClones(t *testing.T) {
	g := twoSnakes(t, []Point{{4, 9}})
	clone := g.Clone()
	clone.Step([MaxSnakes]Direction{Up, Up})

	s, _ := g.Snake(0)
	assert.Equal(t, []Point{{4, 6}, {4, 7}, {4, 8}}, s.Body)
	assert.Equal(t, Food, g.Grid.At(Point{4, 9}).Kind)
	assert.Equal(t, 0, g.Turn)
}

func TestPerspective(t *testing.T) {
	g, err := New(0, 11, 11, []SnakeData{
		{Health: 90, Body: []Point{{1, 1}}},
		{Health: 80, Body: []Point{{5, 5}}},
		{Health: 70, Body: []Point{{9, 9}}},
	}, nil, nil)
	require.NoError(t, err)

	p := g.Perspective(2)
	assert.Equal(t, uint8(0), p.Snakes[0].ID)
	assert.Equal(t, 70, p.Snakes[0].Health)
	me, _ := p.Snake(0)
	assert.Equal(t, Point{9, 9}, me.Head())
	old, _ := p.Snake(2)
	assert.Equal(t, Point{1, 1}, old.Head())
	// The source game is untouched.
	assert.Equal(t, 90, g.Snakes[0].Health)
}

func TestRandomPlayKeepsGridConsistent(t *testing.T) {
	g, err := New(0, 7, 7, []SnakeData{
		{Health: 100, Body: Spawn(Point{1, 1})},
		{Health: 100, Body: Spawn(Point{5, 5})},
		{Health: 100, Body: Spawn(Point{1, 5})},
		{Health: 100, Body: Spawn(Point{5, 1})},
	}, []Point{{3, 3}, {0, 6}, {6, 0}}, nil)
	require.NoError(t, err)

	// Deterministic move pattern; every snake takes its first valid move rotated by turn.
	for g.Outcome().Kind == Ongoing && g.Turn < 200 {
		var moves [MaxSnakes]Direction
		for _, s := range g.Snakes {
			valid := g.ValidMoves(s.ID)
			for k := 0; k < 4; k++ {
				d := Direction((k + g.Turn + int(s.ID)) % 4)
				if valid[d] {
					moves[s.ID] = d
					break
				}
			}
		}
		g.Step(moves)
		requireConsistent(t, g)
	}
}
