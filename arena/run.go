package arena

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/brensch/snork/agent"
	"github.com/brensch/snork/game"
	"github.com/brensch/snork/store"
)

// Recorder receives the rows of every finished game. It must be safe for
// concurrent use.
type Recorder interface {
	Record(rows []store.TurnRow) error
}

type Config struct {
	Agents   []agent.Config
	Width    int
	Height   int
	Settings Settings
	// GameCount is the number of games per seating.
	GameCount int
	// Swap replays the games once per rotation of the seating so that each
	// agent plays from each start.
	Swap bool
	// Seed makes runs reproducible. Zero seeds from the clock.
	Seed int64
	// Parallel bounds concurrently running games. Zero uses GOMAXPROCS.
	Parallel int
	// Init, if set, is the start position of every game instead of a
	// generated one.
	Init *game.Game

	Recorder Recorder
	// Progress, if set, receives an event after every game. Run does not
	// close it.
	Progress chan<- Event
	Log      *slog.Logger
}

// Tally counts results per agent, in the order of Config.Agents.
type Tally struct {
	Agents     []string
	Wins       []int
	Draws      int
	Unfinished int
	Games      int
	Turns      int
}

func newTally(agents []agent.Config) Tally {
	t := Tally{Agents: make([]string, len(agents)), Wins: make([]int, len(agents))}
	for i, a := range agents {
		t.Agents[i] = a.String()
	}
	return t
}

func (t Tally) clone() Tally {
	t.Agents = append([]string(nil), t.Agents...)
	t.Wins = append([]int(nil), t.Wins...)
	return t
}

func (t Tally) String() string {
	return fmt.Sprintf("agents=%v wins=%v draws=%d unfinished=%d games=%d turns=%d",
		t.Agents, t.Wins, t.Draws, t.Unfinished, t.Games, t.Turns)
}

// Event reports one finished game. Winner is the agent index or -1.
type Event struct {
	GameID   string
	Rotation int
	Index    int
	Total    int
	Outcome  game.Outcome
	Winner   int
	Turns    int
	Elapsed  time.Duration
	Tally    Tally
}

// Run plays GameCount games, or GameCount games per rotation with Swap,
// and returns the tally. The first game error cancels the rest.
func Run(ctx context.Context, cfg Config) (Tally, error) {
	n := len(cfg.Agents)
	if n == 0 || n > game.MaxSnakes {
		return Tally{}, fmt.Errorf("arena: %d agents, want 1 to %d", n, game.MaxSnakes)
	}
	if cfg.Init != nil && len(cfg.Init.Snakes) != n {
		return Tally{}, fmt.Errorf("arena: start position has %d snakes for %d agents", len(cfg.Init.Snakes), n)
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	parallel := cfg.Parallel
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}
	rotations := 1
	if cfg.Swap {
		rotations = n
	}
	total := rotations * cfg.GameCount

	log.Info("arena start", "agents", newTally(cfg.Agents).Agents, "games", total, "seed", seed, "parallel", parallel)

	var (
		mu    sync.Mutex
		tally = newTally(cfg.Agents)
		done  int
	)
	start := time.Now()

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)

	for r := 0; r < rotations; r++ {
		for i := 0; i < cfg.GameCount; i++ {
			// Every rotation replays the same boards with the seats moved.
			gameSeed := seed + int64(i)
			eg.Go(func() error {
				id := uuid.NewString()
				res, err := playOne(ctx, cfg, id, r, rand.New(rand.NewSource(gameSeed)), log)
				if err != nil {
					return fmt.Errorf("game %s: %w", id, err)
				}

				winner := -1
				mu.Lock()
				tally.Games++
				tally.Turns += res.Turns
				switch res.Outcome.Kind {
				case game.Won:
					winner = (int(res.Outcome.Winner) + r) % n
					tally.Wins[winner]++
				case game.Draw:
					tally.Draws++
				default:
					tally.Unfinished++
				}
				done++
				ev := Event{
					GameID:   id,
					Rotation: r,
					Index:    done,
					Total:    total,
					Outcome:  res.Outcome,
					Winner:   winner,
					Turns:    res.Turns,
					Elapsed:  time.Since(start),
					Tally:    tally.clone(),
				}
				mu.Unlock()

				log.Info("finish game", "game", id, "index", ev.Index, "outcome", res.Outcome.String(), "turns", res.Turns, "elapsed", ev.Elapsed)

				if cfg.Progress != nil {
					select {
					case cfg.Progress <- ev:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				return nil
			})
		}
	}

	err := eg.Wait()
	log.Info("arena done", "tally", tally.String(), "elapsed", time.Since(start))
	return tally, err
}

// playOne plays a single game with the agents rotated left by r, so that
// seat s holds agent (s+r) mod n.
func playOne(ctx context.Context, cfg Config, id string, r int, rng *rand.Rand, log *slog.Logger) (Result, error) {
	n := len(cfg.Agents)

	var (
		g   *game.Game
		err error
	)
	if cfg.Init != nil {
		g = cfg.Init.Clone()
	} else {
		g, err = InitGame(cfg.Width, cfg.Height, n, rng, log)
		if err != nil {
			return Result{}, err
		}
	}

	agents := make([]agent.Agent, n)
	names := make([]string, n)
	for seat := range agents {
		c := cfg.Agents[(seat+r)%n]
		// Agents decide concurrently, so each gets its own source.
		agents[seat] = c.New(rand.New(rand.NewSource(rng.Int63())), log)
		names[seat] = c.String()
	}

	var rec *Recording
	if cfg.Recorder != nil {
		rec = &Recording{GameID: id, Agents: names}
	}

	res, err := PlayGame(ctx, agents, g, cfg.Settings, rng, rec, log.With("game", id))
	if err != nil {
		return res, err
	}
	if rec != nil {
		if err := cfg.Recorder.Record(rec.Rows); err != nil {
			return res, fmt.Errorf("record: %w", err)
		}
	}
	return res, nil
}
