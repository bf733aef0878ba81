package arena

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/snork/agent"
	"github.com/brensch/snork/game"
	"github.com/brensch/snork/store"
)

func requireConsistent(t *testing.T, g *game.Game) {
	t.Helper()
	want := map[game.Point]bool{}
	for _, s := range g.Snakes {
		for _, p := range s.Body {
			want[p] = true
		}
	}
	got := map[game.Point]bool{}
	for _, p := range g.Grid.Points(func(c game.Cell) bool { return c.Kind == game.Occupied }) {
		got[p] = true
	}
	require.Equal(t, want, got, "occupied cells differ from bodies\n%s", g)
}

func foodPoints(g *game.Game) []game.Point {
	return g.Grid.Points(func(c game.Cell) bool { return c.Kind == game.Food })
}

func TestInitGame(t *testing.T) {
	corners := map[game.Point]bool{{X: 1, Y: 1}: true, {X: 9, Y: 1}: true, {X: 9, Y: 9}: true, {X: 1, Y: 9}: true}
	edges := map[game.Point]bool{{X: 5, Y: 1}: true, {X: 9, Y: 5}: true, {X: 5, Y: 9}: true, {X: 1, Y: 5}: true}

	for seed := int64(1); seed <= 20; seed++ {
		g, err := InitGame(11, 11, 4, rand.New(rand.NewSource(seed)), nil)
		require.NoError(t, err)
		require.Len(t, g.Snakes, 4)
		requireConsistent(t, g)

		inCorners := corners[g.Snakes[0].Head()]
		for _, s := range g.Snakes {
			assert.Equal(t, game.MaxHealth, s.Health)
			assert.Equal(t, game.Spawn(s.Head()), s.Body)
			if inCorners {
				assert.True(t, corners[s.Head()], "seed %d: %v", seed, s.Head())
			} else {
				assert.True(t, edges[s.Head()], "seed %d: %v", seed, s.Head())
			}
		}

		food := foodPoints(g)
		assert.Contains(t, food, game.Point{X: 5, Y: 5})
		for _, p := range food {
			if p == (game.Point{X: 5, Y: 5}) {
				continue
			}
			onX := p.X == 0 || p.X == 10
			onY := p.Y == 0 || p.Y == 10
			assert.True(t, onX != onY, "seed %d: food %v not on a border edge", seed, p)
		}
	}
}

func TestInitGame_Shuffles(t *testing.T) {
	heads := map[game.Point]bool{}
	for seed := int64(1); seed <= 30; seed++ {
		g, err := InitGame(11, 11, 2, rand.New(rand.NewSource(seed)), nil)
		require.NoError(t, err)
		require.Len(t, g.Snakes, 2)
		heads[g.Snakes[0].Head()] = true
	}
	assert.Greater(t, len(heads), 2)
}

func TestInitGame_Rejects(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := InitGame(11, 11, 5, rng, nil)
	assert.ErrorIs(t, err, game.ErrInvalidGame)
	_, err = InitGame(11, 11, 0, rng, nil)
	assert.ErrorIs(t, err, game.ErrInvalidGame)
	_, err = InitGame(2, 11, 2, rng, nil)
	assert.ErrorIs(t, err, game.ErrInvalidGame)
}

func TestExpandHazards(t *testing.T) {
	grid := game.NewGrid(5, 3)
	var insets [4]int
	rng := rand.New(rand.NewSource(3))

	grown := 0
	for expandHazards(&grid, &insets, rng) {
		grown++
		require.Less(t, grown, 100)
	}
	assert.True(t, insets[0]+insets[2] >= 3 || insets[1]+insets[3] >= 5, "%v", insets)

	hazards := grid.Points(func(c game.Cell) bool { return c.Hazard })
	assert.NotEmpty(t, hazards)
	for _, p := range hazards {
		inRow := p.Y < insets[0] || p.Y >= 3-insets[2]
		inCol := p.X < insets[1] || p.X >= 5-insets[3]
		assert.True(t, inRow || inCol, "hazard %v outside insets %v", p, insets)
	}
}

func TestExpandHazards_Bottom(t *testing.T) {
	grid := game.NewGrid(4, 4)
	insets := [4]int{0, 0, 0, 0}
	// Find a seed that picks the bottom side first.
	var rng *rand.Rand
	for seed := int64(1); ; seed++ {
		if rand.New(rand.NewSource(seed)).Intn(4) == 0 {
			rng = rand.New(rand.NewSource(seed))
			break
		}
	}
	require.True(t, expandHazards(&grid, &insets, rng))
	assert.Equal(t, [4]int{1, 0, 0, 0}, insets)
	assert.Equal(t, []game.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0}},
		grid.Points(func(c game.Cell) bool { return c.Hazard }))
}

func TestSpawnFood(t *testing.T) {
	grid := game.NewGrid(2, 1)
	grid.SetKind(game.Point{X: 0, Y: 0}, game.Occupied)
	rng := rand.New(rand.NewSource(1))

	require.True(t, spawnFood(&grid, rng))
	assert.Equal(t, game.Food, grid.At(game.Point{X: 1, Y: 0}).Kind)
	assert.False(t, spawnFood(&grid, rng))
}

// scripted replays fixed moves and records what it saw.
type scripted struct {
	mu     sync.Mutex
	moves  []game.Direction
	starts int
	ends   int
	seen   []*game.Game
}

func (s *scripted) Start(*game.Game) { s.mu.Lock(); s.starts++; s.mu.Unlock() }
func (s *scripted) End(*game.Game)   { s.mu.Lock(); s.ends++; s.mu.Unlock() }

func (s *scripted) Step(_ context.Context, g *game.Game, _ time.Duration) game.Direction {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, g)
	d := s.moves[0]
	s.moves = s.moves[1:]
	return d
}

func TestPlayGame_PerspectiveAndRecording(t *testing.T) {
	g, err := game.New(0, 7, 7, []game.SnakeData{
		{Health: 100, Body: []game.Point{{X: 1, Y: 3}, {X: 1, Y: 2}, {X: 1, Y: 1}}},
		{Health: 100, Body: []game.Point{{X: 5, Y: 3}, {X: 5, Y: 2}, {X: 5, Y: 1}}},
	}, nil, nil)
	require.NoError(t, err)

	// Snake 0 walks into the wall on turn 2; snake 1 keeps going up.
	a := &scripted{moves: []game.Direction{game.Left, game.Left}}
	b := &scripted{moves: []game.Direction{game.Up, game.Up}}
	rec := &Recording{GameID: "g1", Agents: []string{"a", "b"}}

	res, err := PlayGame(context.Background(), []agent.Agent{a, b}, g, Settings{}, rand.New(rand.NewSource(1)), rec, nil)
	require.NoError(t, err)
	assert.Equal(t, game.Outcome{Kind: game.Won, Winner: 1}, res.Outcome)
	assert.Equal(t, 2, res.Turns)
	requireConsistent(t, g)

	assert.Equal(t, 1, a.starts)
	assert.Equal(t, 1, a.ends)
	assert.Equal(t, 1, b.ends)

	// Each agent sees itself as snake 0.
	require.Len(t, b.seen, 2)
	me, ok := b.seen[0].Snake(0)
	require.True(t, ok)
	assert.Equal(t, game.Point{X: 5, Y: 3}, me.Head())
	assert.Equal(t, uint8(0), b.seen[0].Snakes[0].ID)

	require.Len(t, rec.Rows, 2)
	assert.Equal(t, int32(0), rec.Rows[0].Turn)
	assert.Equal(t, "ongoing", rec.Rows[0].Outcome)
	assert.Equal(t, int32(game.Left), rec.Rows[0].Snakes[0].Move)
	assert.Equal(t, int32(game.Up), rec.Rows[0].Snakes[1].Move)
	assert.Equal(t, "winner 1", rec.Rows[1].Outcome)
	assert.Equal(t, int32(1), rec.Rows[1].Winner)
}

func TestPlayGame_RandomAgentsFinish(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		rng := rand.New(rand.NewSource(seed))
		g, err := InitGame(7, 7, 3, rng, nil)
		require.NoError(t, err)

		agents := []agent.Agent{
			agent.NewRandom(rand.New(rand.NewSource(seed + 100))),
			agent.NewRandom(rand.New(rand.NewSource(seed + 200))),
			agent.NewRandom(rand.New(rand.NewSource(seed + 300))),
		}
		s := Settings{FoodRate: 0.2, ShrinkTurns: 5, MaxTurns: 500}
		rec := &Recording{GameID: "g", Agents: []string{"r0", "r1", "r2"}}

		res, err := PlayGame(context.Background(), agents, g, s, rng, rec, nil)
		require.NoError(t, err)
		requireConsistent(t, g)
		assert.Len(t, rec.Rows, res.Turns)
		for i, row := range rec.Rows {
			assert.Equal(t, int32(i), row.Turn)
		}
	}
}

func TestPlayGame_Cancelled(t *testing.T) {
	g, err := InitGame(11, 11, 2, rand.New(rand.NewSource(1)), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agents := []agent.Agent{agent.NewRandom(rand.New(rand.NewSource(1))), agent.NewRandom(rand.New(rand.NewSource(2)))}
	_, err = PlayGame(ctx, agents, g, Settings{}, rand.New(rand.NewSource(1)), nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

type rowCounter struct {
	mu    sync.Mutex
	games int
	rows  int
}

func (c *rowCounter) Record(rows []store.TurnRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.games++
	c.rows += len(rows)
	return nil
}

func randomAgents(t *testing.T, n int) []agent.Config {
	t.Helper()
	out := make([]agent.Config, n)
	for i := range out {
		c, err := agent.Parse("random")
		require.NoError(t, err)
		out[i] = c
	}
	return out
}

func TestRun_SwapTallies(t *testing.T) {
	progress := make(chan Event, 100)
	rec := &rowCounter{}
	cfg := Config{
		Agents:    randomAgents(t, 2),
		Width:     7,
		Height:    7,
		Settings:  Settings{FoodRate: 0.15, ShrinkTurns: 10, MaxTurns: 300},
		GameCount: 3,
		Swap:      true,
		Seed:      42,
		Parallel:  2,
		Recorder:  rec,
		Progress:  progress,
	}

	tally, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	close(progress)

	assert.Equal(t, 6, tally.Games)
	assert.Equal(t, 6, tally.Wins[0]+tally.Wins[1]+tally.Draws+tally.Unfinished)
	assert.Equal(t, []string{"random", "random"}, tally.Agents)
	assert.Equal(t, 6, rec.games)
	assert.Equal(t, tally.Turns, rec.rows)

	var (
		events int
		last   Event
	)
	for ev := range progress {
		events++
		assert.Equal(t, 6, ev.Total)
		if ev.Index > last.Index {
			last = ev
		}
	}
	assert.Equal(t, 6, events)
	assert.Equal(t, 6, last.Index)
	assert.Equal(t, tally, last.Tally)
}

func TestRun_Reproducible(t *testing.T) {
	cfg := Config{
		Agents:    randomAgents(t, 3),
		Width:     7,
		Height:    7,
		Settings:  Settings{FoodRate: 0.15, ShrinkTurns: 10, MaxTurns: 300},
		GameCount: 4,
		Seed:      7,
		Parallel:  3,
	}
	first, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	second, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRun_Init(t *testing.T) {
	init, err := game.New(0, 5, 5, []game.SnakeData{
		{Health: 100, Body: []game.Point{{X: 0, Y: 0}}},
		{Health: 100, Body: []game.Point{{X: 4, Y: 4}}},
	}, nil, nil)
	require.NoError(t, err)

	cfg := Config{
		Agents:    randomAgents(t, 2),
		Settings:  Settings{MaxTurns: 100},
		GameCount: 2,
		Seed:      1,
		Init:      init,
	}
	tally, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, tally.Games)
	assert.Equal(t, 0, init.Turn, "start position must not be modified")

	cfg.Agents = randomAgents(t, 3)
	_, err = Run(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRun_RejectsAgentCount(t *testing.T) {
	_, err := Run(context.Background(), Config{GameCount: 1})
	assert.Error(t, err)
	_, err = Run(context.Background(), Config{Agents: randomAgents(t, 5), GameCount: 1})
	assert.Error(t, err)
}
