// Command snork serves the max-n agent over the Battlesnake HTTP API.
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
	"github.com/brensch/snork/api"
	"github.com/brensch/snork/config"
	"github.com/brensch/snork/logging"
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

	listen := fs.String("listen", config.String("LISTEN", ":8080"), "HTTP listen address")
	moveTimeout := fs.Duration("move-timeout", config.Duration("MOVE_TIMEOUT", 500*time.Millisecond), "Move timeout when the game does not send one")
	latency := fs.Duration("latency", config.Duration("LATENCY", 100*time.Millisecond), "Network latency assumed until the engine reports one")
	fastTimeout := fs.Duration("fast-timeout", config.Duration("FAST_TIMEOUT", agent.DefaultFastTimeout), "Budget at or below which only depth 1 is searched")
	maxDepth := fs.Int("max-depth", config.Int("MAX_DEPTH", agent.DefaultMaxDepth), "Deepest search depth")
	agentName := fs.String("agent", config.String("AGENT", "maxn"), "Agent to play: maxn, maxn:depth=N,fast=DURATION or random")
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

	// -max-depth and -fast-timeout are defaults; options in -agent override them.
	cfg, err := agent.ParseDefault(*agentName, agent.Config{MaxDepth: *maxDepth, FastTimeout: *fastTimeout})
	if err != nil {
		return err
	}
	newAgent := func() agent.Agent {
		return cfg.New(rand.New(rand.NewSource(time.Now().UnixNano())), log)
	}

	srv := &http.Server{
		Addr: *listen,
		Handler: api.Router(newAgent, api.Options{
			MoveTimeout: *moveTimeout,
			Latency:     *latency,
			Log:         log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", *listen, "agent", cfg.String(), "move_timeout", *moveTimeout, "latency", *latency)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
