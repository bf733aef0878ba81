package search

import (
	"context"

	"github.com/brensch/snork/game"
)

// Result is the outcome of one completed depth.
type Result struct {
	Depth     int
	Direction game.Direction
	Value     float64
	Values    [4]float64
}

// IterativeDeepening searches g at depth 1, 2, ... maxDepth and sends every
// completed depth on out, shallowest first. It closes out when it returns.
//
// A depth whose best value is Loss is not sent and ends the search: deeper
// search will not rescue a lost position and the caller falls back instead.
// A depth whose best value is Win is sent and ends the search.
//
// Cancellation is observed inside each depth, so a depth that does not
// finish before ctx is done is never sent. A depth that did finish is sent
// if out has room. The returned error is ctx.Err()
// in that case and nil otherwise.
func IterativeDeepening(ctx context.Context, g *game.Game, h Heuristic, maxDepth int, out chan<- Result) error {
	defer close(out)

	for depth := 1; depth <= maxDepth; depth++ {
		values, err := AsyncMaxN(ctx, g, depth, h)
		if err != nil {
			return err
		}

		dir, value := Best(values)
		if value <= Loss {
			return nil
		}

		// A completed depth is delivered whenever out has room, even if ctx
		// ended meanwhile; only a send that would block gives way to ctx.
		r := Result{Depth: depth, Direction: dir, Value: value, Values: values}
		select {
		case out <- r:
		default:
			select {
			case out <- r:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if value >= Win {
			return nil
		}
	}
	return nil
}
