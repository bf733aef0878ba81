package agent

import (
	"context"
	"math/rand"
	"time"

	"github.com/brensch/snork/game"
)

// Random plays a uniformly random valid move, or up when there is none.
// It is not safe for concurrent use because the source is shared.
type Random struct {
	rng *rand.Rand
}

func NewRandom(rng *rand.Rand) *Random {
	return &Random{rng: rng}
}

func (*Random) Start(*game.Game) {}
func (*Random) End(*game.Game)   {}

func (a *Random) Step(_ context.Context, g *game.Game, _ time.Duration) game.Direction {
	valid := g.ValidMoves(0)
	var options []game.Direction
	for _, d := range game.Directions {
		if valid[d] {
			options = append(options, d)
		}
	}
	if len(options) == 0 {
		return game.Up
	}
	return options[a.rng.Intn(len(options))]
}
