package arena

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/brensch/snork/agent"
	"github.com/brensch/snork/game"
	"github.com/brensch/snork/store"
)

// Settings are the rules of one game.
type Settings struct {
	// Timeout is the budget each agent gets per turn.
	Timeout time.Duration
	// FoodRate is the chance that a food spawns on a turn.
	FoodRate float64
	// ShrinkTurns is how often the hazard grows by one row or column.
	// Zero disables hazards.
	ShrinkTurns int
	// MaxTurns stops a game that has not finished. Zero means no limit.
	MaxTurns int
}

var DefaultSettings = Settings{
	Timeout:     200 * time.Millisecond,
	FoodRate:    0.15,
	ShrinkTurns: 25,
}

// Result is how a game ended. Outcome is Ongoing when MaxTurns was hit.
type Result struct {
	Outcome game.Outcome
	Turns   int
}

// Recording collects one row per turn of a game.
type Recording struct {
	GameID string
	Agents []string
	Rows   []store.TurnRow
}

// initialFood is the food count a fresh board is assumed to hold.
const initialFood = 4

// PlayGame plays g to the end. agents is indexed by snake id and each agent
// decides for its snake on a perspective clone, so every agent sees itself
// as snake 0. Agents of one turn are called concurrently and must not share
// a random source. rng drives food and hazards. rec may be nil.
func PlayGame(ctx context.Context, agents []agent.Agent, g *game.Game, s Settings, rng *rand.Rand, rec *Recording, log *slog.Logger) (Result, error) {
	if log == nil {
		log = slog.Default()
	}
	start := g.Turn
	foodCount := initialFood
	var insets [4]int

	seats := make([]uint8, 0, len(g.Snakes))
	for _, snake := range g.Snakes {
		seats = append(seats, snake.ID)
		agents[snake.ID].Start(g.Perspective(snake.ID))
	}
	defer func() {
		for _, id := range seats {
			agents[id].End(g.Perspective(id))
		}
	}()

	for turn := g.Turn; ; turn++ {
		if err := ctx.Err(); err != nil {
			return Result{Outcome: g.Outcome(), Turns: turn - start}, err
		}
		if s.MaxTurns > 0 && turn-start >= s.MaxTurns {
			log.Warn("turn limit reached", "turns", turn-start)
			return Result{Outcome: g.Outcome(), Turns: turn - start}, nil
		}

		moves := decide(ctx, agents, g, s.Timeout)

		var row store.TurnRow
		if rec != nil {
			row = store.NewTurnRow(rec.GameID, g, rec.Agents, moves)
		}

		g.Step(moves)
		outcome := g.Outcome()

		if rec != nil {
			row.SetOutcome(outcome)
			rec.Rows = append(rec.Rows, row)
		}
		if log.Enabled(ctx, slog.LevelDebug) {
			log.Debug("turn", "turn", turn, "moves", moves, "board", g.String())
		}

		if outcome.Kind != game.Ongoing {
			log.Debug("game over", "outcome", outcome.String(), "turns", turn+1-start)
			return Result{Outcome: outcome, Turns: turn + 1 - start}, nil
		}

		for _, snake := range g.Snakes {
			if snake.Health == game.MaxHealth {
				foodCount--
			}
		}
		if foodCount <= 0 || rng.Float64() < s.FoodRate {
			if spawnFood(&g.Grid, rng) {
				foodCount++
			}
		}

		if s.ShrinkTurns > 0 && turn > 0 && turn%s.ShrinkTurns == 0 {
			expandHazards(&g.Grid, &insets, rng)
		}
	}
}

// decide asks every living snake's agent for a move concurrently. Moves of
// dead snakes stay Up and are ignored by Step.
func decide(ctx context.Context, agents []agent.Agent, g *game.Game, budget time.Duration) [game.MaxSnakes]game.Direction {
	var (
		moves [game.MaxSnakes]game.Direction
		wg    sync.WaitGroup
	)
	for _, snake := range g.Snakes {
		id := snake.ID
		view := g.Perspective(id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			moves[id] = agents[id].Step(ctx, view, budget)
		}()
	}
	wg.Wait()
	return moves
}

// spawnFood turns a random free cell into food.
func spawnFood(grid *game.Grid, rng *rand.Rand) bool {
	free := grid.Points(func(c game.Cell) bool { return c.Kind == game.Free })
	if len(free) == 0 {
		return false
	}
	grid.SetKind(free[rng.Intn(len(free))], game.Food)
	return true
}

// expandHazards grows the hazard by one row or column from a random side:
// 0 bottom, 1 left, 2 top, 3 right. It stops once the insets meet.
func expandHazards(grid *game.Grid, insets *[4]int, rng *rand.Rand) bool {
	if insets[0]+insets[2] >= grid.Height || insets[1]+insets[3] >= grid.Width {
		return false
	}
	side := rng.Intn(4)
	insets[side]++
	switch side {
	case 0, 2:
		y := insets[0] - 1
		if side == 2 {
			y = grid.Height - insets[2]
		}
		for x := 0; x < grid.Width; x++ {
			grid.SetHazard(game.Point{X: x, Y: y}, true)
		}
	case 1, 3:
		x := insets[1] - 1
		if side == 3 {
			x = grid.Width - insets[3]
		}
		for y := 0; y < grid.Height; y++ {
			grid.SetHazard(game.Point{X: x, Y: y}, true)
		}
	}
	return true
}
