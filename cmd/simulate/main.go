// Command simulate plays agents against each other on generated boards.
//
//	simulate [flags] agent [agent...]
//
// Agents are "random", "maxn" or "maxn:depth=N,fast=DURATION".
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/snork/agent"
	"github.com/brensch/snork/api"
	"github.com/brensch/snork/arena"
	"github.com/brensch/snork/config"
	"github.com/brensch/snork/game"
	"github.com/brensch/snork/logging"
	"github.com/brensch/snork/store"
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
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: %s [flags] agent [agent...]\n", os.Args[0])
		fs.PrintDefaults()
	}

	def := arena.DefaultSettings
	timeout := fs.Duration("timeout", config.Duration("SIM_TIMEOUT", def.Timeout), "Per-turn budget for each agent")
	width := fs.Int("width", config.Int("SIM_WIDTH", 11), "Board width")
	height := fs.Int("height", config.Int("SIM_HEIGHT", 11), "Board height")
	foodRate := fs.Float64("food-rate", config.Float("SIM_FOOD_RATE", def.FoodRate), "Chance of a food spawning each turn")
	shrinkTurns := fs.Int("shrink-turns", config.Int("SIM_SHRINK_TURNS", def.ShrinkTurns), "Turns between hazard expansions, 0 disables hazards")
	maxTurns := fs.Int("max-turns", config.Int("SIM_MAX_TURNS", 0), "Stop games after this many turns, 0 for no limit")
	gameCount := fs.Int("game-count", config.Int("SIM_GAME_COUNT", 1), "Games per seating")
	swap := fs.Bool("swap", config.Bool("SIM_SWAP", false), "Replay every board once per rotation of the seats")
	seed := fs.Int64("seed", config.Int64("SIM_SEED", 0), "Random seed, 0 seeds from the clock")
	parallel := fs.Int("parallel", config.Int("SIM_PARALLEL", 0), "Concurrent games, 0 uses GOMAXPROCS")
	initFile := fs.String("init", config.String("SIM_INIT", ""), "Battlesnake move request JSON to start every game from")
	outDir := fs.String("out-dir", config.String("SIM_OUT_DIR", ""), "Directory for parquet turn archives, empty disables")
	batchRows := fs.Int("batch-rows", config.Int("SIM_BATCH_ROWS", 10000), "Rows per parquet file")
	useTUI := fs.Bool("tui", config.Bool("SIM_TUI", false), "Show a live dashboard instead of logs")
	logFormat := fs.String("log-format", config.String("LOG_FORMAT", logging.FormatPretty), "Log format: pretty, json or text")
	logLevel := fs.String("log-level", config.String("LOG_LEVEL", "info"), "Log level: debug, info, warn or error")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("no agents given")
	}
	agents, err := agent.ParseAll(fs.Args())
	if err != nil {
		return err
	}

	var logOut io.Writer = os.Stderr
	if *useTUI {
		logOut = io.Discard
	}
	log, err := logging.New(logOut, *logFormat, *logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	cfg := arena.Config{
		Agents: agents,
		Width:  *width,
		Height: *height,
		Settings: arena.Settings{
			Timeout:     *timeout,
			FoodRate:    *foodRate,
			ShrinkTurns: *shrinkTurns,
			MaxTurns:    *maxTurns,
		},
		GameCount: *gameCount,
		Swap:      *swap,
		Seed:      *seed,
		Parallel:  *parallel,
		Log:       log,
	}

	if *initFile != "" {
		g, err := loadInit(*initFile)
		if err != nil {
			return err
		}
		cfg.Init = g
		cfg.Width, cfg.Height = g.Grid.Width, g.Grid.Height
	}

	var archive *store.Archive
	if *outDir != "" {
		archive, err = store.NewArchive(*outDir, *batchRows, log)
		if err != nil {
			return err
		}
		cfg.Recorder = archive
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	var tally arena.Tally
	if *useTUI {
		tally, err = runTUI(ctx, cfg)
	} else {
		tally, err = arena.Run(ctx, cfg)
	}
	if errors.Is(err, context.Canceled) {
		fmt.Println("interrupted")
		err = nil
	}

	if archive != nil {
		if ferr := archive.Flush(); ferr != nil && err == nil {
			err = ferr
		}
		for _, f := range archive.Files() {
			fmt.Println("wrote", f)
		}
	}

	fmt.Printf("Agents: %v\n", tally.Agents)
	fmt.Printf("Wins:   %v\n", tally.Wins)
	fmt.Printf("Draws: %d, unfinished: %d, games: %d, turns: %d, elapsed: %s\n",
		tally.Draws, tally.Unfinished, tally.Games, tally.Turns, time.Since(start).Round(time.Millisecond))
	return err
}

func runTUI(ctx context.Context, cfg arena.Config) (arena.Tally, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan arena.Event, 16)
	cfg.Progress = events

	names := make([]string, len(cfg.Agents))
	for i, a := range cfg.Agents {
		names[i] = a.String()
	}
	rotations := 1
	if cfg.Swap {
		rotations = len(cfg.Agents)
	}
	initial := arena.Tally{Agents: names, Wins: make([]int, len(names))}

	p := tea.NewProgram(newModel(initial, rotations*cfg.GameCount, events, cancel))

	type result struct {
		tally arena.Tally
		err   error
	}
	finished := make(chan result, 1)
	go func() {
		tally, err := arena.Run(ctx, cfg)
		finished <- result{tally, err}
		p.Send(doneMsg{tally: tally, err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-finished
		return arena.Tally{}, err
	}
	// Quitting early cancels the run; wait for in-flight games to unwind.
	cancel()
	res := <-finished
	return res.tally, res.err
}

// loadInit reads a move request and turns it into a start position with the
// request's snake first.
func loadInit(path string) (*game.Game, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var req api.GameRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return api.NewGame(&req)
}
