package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/brensch/snork/game"
	"github.com/brensch/snork/search"
)

const (
	// DefaultFastTimeout is the budget at or below which only a depth 1
	// search is run, synchronously.
	DefaultFastTimeout = 150 * time.Millisecond
	DefaultMaxDepth    = 7
)

// Path records how a decision was reached.
type Path string

const (
	PathFast      Path = "fast"
	PathDeepening Path = "deepening"
	// PathFallback means no search result was usable and the first valid
	// move was played.
	PathFallback Path = "fallback"
	// PathDefault means snake 0 had no valid move at all.
	PathDefault Path = "default"
)

type Decision struct {
	Direction game.Direction
	Depth     int
	Value     float64
	Path      Path
}

// MaxN searches with iterative deepening until the budget runs out and
// plays the move of the deepest completed depth.
type MaxN struct {
	Heuristic   search.Heuristic
	MaxDepth    int
	FastTimeout time.Duration
	Logger      *slog.Logger
}

func NewMaxN(h search.Heuristic, logger *slog.Logger) *MaxN {
	return &MaxN{
		Heuristic:   h,
		MaxDepth:    DefaultMaxDepth,
		FastTimeout: DefaultFastTimeout,
		Logger:      logger,
	}
}

func (a *MaxN) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

func (a *MaxN) Start(g *game.Game) {
	a.logger().Debug("game start", "turn", g.Turn, "snakes", len(g.Snakes), "width", g.Grid.Width, "height", g.Grid.Height)
}

func (a *MaxN) End(g *game.Game) {
	a.logger().Debug("game end", "turn", g.Turn, "outcome", g.Outcome().String())
}

func (a *MaxN) Step(ctx context.Context, g *game.Game, budget time.Duration) game.Direction {
	return a.Decide(ctx, g, budget).Direction
}

// Decide picks a move for snake 0 within budget. It works on a private
// clone of g.
func (a *MaxN) Decide(ctx context.Context, g *game.Game, budget time.Duration) Decision {
	start := time.Now()
	g = g.Clone()
	log := a.logger().With("turn", g.Turn)

	var d Decision
	if budget <= a.FastTimeout {
		d = a.fast(g)
	} else {
		d = a.deepen(ctx, g, budget, log)
	}

	log.Debug("decided",
		"move", d.Direction.String(),
		"path", string(d.Path),
		"depth", d.Depth,
		"value", d.Value,
		"budget", budget,
		"elapsed", time.Since(start),
	)
	return d
}

func (a *MaxN) fast(g *game.Game) Decision {
	dir, value := search.Best(search.MaxN(g, 1, a.Heuristic))
	if value <= search.Loss {
		return fallback(g)
	}
	return Decision{Direction: dir, Depth: 1, Value: value, Path: PathFast}
}

func (a *MaxN) deepen(ctx context.Context, g *game.Game, budget time.Duration, log *slog.Logger) Decision {
	maxDepth := a.MaxDepth
	if maxDepth < 1 {
		maxDepth = 1
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	// Buffered so the search never blocks on a consumer that has left.
	results := make(chan search.Result, maxDepth)
	go func() {
		if err := search.IterativeDeepening(ctx, g, a.Heuristic, maxDepth, results); err != nil {
			log.Debug("search stopped", "err", err)
		}
	}()

	var (
		last  search.Result
		found bool
	)
	keep := func(r search.Result) {
		log.Debug("depth complete", "depth", r.Depth, "move", r.Direction.String(), "value", r.Value)
		last, found = r, true
	}

wait:
	for {
		select {
		case r, ok := <-results:
			if !ok {
				break wait
			}
			keep(r)
		case <-ctx.Done():
			// Depths that completed before the deadline may still be queued.
			for {
				select {
				case r, ok := <-results:
					if !ok {
						break wait
					}
					keep(r)
				default:
					break wait
				}
			}
		}
	}

	if !found || last.Value <= search.Loss {
		return fallback(g)
	}
	return Decision{Direction: last.Direction, Depth: last.Depth, Value: last.Value, Path: PathDeepening}
}

func fallback(g *game.Game) Decision {
	if dir, ok := g.FirstValidMove(0); ok {
		return Decision{Direction: dir, Value: search.Loss, Path: PathFallback}
	}
	return Decision{Direction: game.Up, Value: search.Loss, Path: PathDefault}
}
