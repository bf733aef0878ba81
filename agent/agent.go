// Package agent turns a game snapshot into a move.
//
// Agents always decide for snake 0. Callers that play another snake pass
// g.Perspective(id).
package agent

import (
	"context"
	"time"

	"github.com/brensch/snork/game"
)

// Agent plays one snake through one game. Step must return a direction
// even when the budget runs out or every move loses, and must not modify g.
type Agent interface {
	Start(g *game.Game)
	Step(ctx context.Context, g *game.Game, budget time.Duration) game.Direction
	End(g *game.Game)
}
