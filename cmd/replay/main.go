// Command replay downloads finished games and reports how often an agent
// picks the move that was actually played.
//
//	replay [flags] [game-id...]
//
// Without ids, games are discovered from -page or from the stats pages of
// the players on -leaderboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brensch/snork/agent"
	"github.com/brensch/snork/config"
	"github.com/brensch/snork/logging"
	"github.com/brensch/snork/replay"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	agentName := fs.String("agent", config.String("AGENT", "maxn"), "Agent to evaluate")
	budget := fs.Duration("budget", config.Duration("REPLAY_BUDGET", 400*time.Millisecond), "Move budget given to the agent")
	snakeName := fs.String("snake", config.String("REPLAY_SNAKE", ""), "Only evaluate snakes with this name")
	page := fs.String("page", config.String("REPLAY_PAGE", ""), "Page to collect game links from")
	leaderboard := fs.String("leaderboard", config.String("REPLAY_LEADERBOARD", ""), "Leaderboard whose players' games are collected")
	maxPlayers := fs.Int("max-players", config.Int("REPLAY_MAX_PLAYERS", 10), "Players to visit on the leaderboard")
	maxGames := fs.Int("max-games", config.Int("REPLAY_MAX_GAMES", 20), "Games to download, 0 for all discovered")
	engineURL := fs.String("engine-url", config.String("ENGINE_URL", replay.DefaultEngineURL), "Game event stream URL, %s is the game id")
	delay := fs.Duration("delay", config.Duration("REPLAY_DELAY", 500*time.Millisecond), "Pause between requests")
	logFormat := fs.String("log-format", config.String("LOG_FORMAT", logging.FormatPretty), "Log format: pretty, json or text")
	logLevel := fs.String("log-level", config.String("LOG_LEVEL", "info"), "Log level: debug, info, warn or error")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	log, err := logging.New(os.Stderr, *logFormat, *logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	cfg, err := agent.Parse(*agentName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: 30 * time.Second}
	ids := fs.Args()
	if len(ids) == 0 {
		ids, err = discover(ctx, client, *page, *leaderboard, *maxPlayers, *delay, log)
		if err != nil {
			return err
		}
	}
	if *maxGames > 0 && len(ids) > *maxGames {
		ids = ids[:*maxGames]
	}
	if len(ids) == 0 {
		return errors.New("no games: pass ids, -page or -leaderboard")
	}

	dl := replay.NewDownloader(log)
	dl.EngineURL = *engineURL
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var total replay.Agreement
	for i, id := range ids {
		if i > 0 && !sleep(ctx, *delay) {
			break
		}
		g, err := dl.Download(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn("download failed", "game", id, "err", err)
			continue
		}

		for _, s := range g.Frames[0].Snakes {
			if *snakeName != "" && s.Name != *snakeName {
				continue
			}
			a := cfg.New(rand.New(rand.NewSource(rng.Int63())), log)
			res, err := replay.Agree(ctx, g, s.ID, a, *budget, log)
			if err != nil && ctx.Err() == nil {
				log.Warn("replay failed", "game", id, "snake", s.Name, "err", err)
				continue
			}
			total.Add(res)
			log.Info("replayed", "game", id, "snake", s.Name, "turns", res.Turns, "agreed", res.Agreed, "rate", res.Rate())
			if ctx.Err() != nil {
				break
			}
		}
	}

	fmt.Printf("Agent: %s\n", cfg.String())
	fmt.Printf("Games: %d, turns: %d, agreed: %d, rate: %.3f\n", len(ids), total.Turns, total.Agreed, total.Rate())
	return nil
}

func discover(ctx context.Context, client *http.Client, page, leaderboard string, maxPlayers int, delay time.Duration, log *slog.Logger) ([]string, error) {
	if page != "" {
		return replay.Discover(ctx, client, page)
	}
	if leaderboard == "" {
		return nil, nil
	}

	players, err := replay.Players(ctx, client, leaderboard)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	if maxPlayers > 0 && len(players) > maxPlayers {
		players = players[:maxPlayers]
	}

	var ids []string
	seen := map[string]bool{}
	for _, p := range players {
		if !sleep(ctx, delay) {
			return ids, ctx.Err()
		}
		found, err := replay.Discover(ctx, client, p.StatsURL)
		if err != nil {
			log.Warn("player page failed", "player", p.Name, "err", err)
			continue
		}
		for _, id := range found {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		log.Info("discovered", "player", p.Name, "games", len(found))
	}
	return ids, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
