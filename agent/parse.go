package agent

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/brensch/snork/heuristic"
)

// Config describes an agent by name, as given on the command line:
//
//	maxn
//	maxn:depth=6,fast=100ms
//	random
type Config struct {
	Kind        string
	MaxDepth    int
	FastTimeout time.Duration
}

func (c Config) String() string {
	if c.Kind != "maxn" {
		return c.Kind
	}
	return fmt.Sprintf("maxn:depth=%d,fast=%s", c.MaxDepth, c.FastTimeout)
}

// New builds a fresh agent. rng is only used by agents that need randomness
// and must not be shared with another goroutine.
func (c Config) New(rng *rand.Rand, logger *slog.Logger) Agent {
	switch c.Kind {
	case "random":
		return NewRandom(rng)
	default:
		a := NewMaxN(heuristic.NewFlood(), logger)
		a.MaxDepth = c.MaxDepth
		a.FastTimeout = c.FastTimeout
		return a
	}
}

func Parse(s string) (Config, error) {
	return ParseDefault(s, Config{MaxDepth: DefaultMaxDepth, FastTimeout: DefaultFastTimeout})
}

// ParseDefault is Parse with the maxn depth and fast timeout taken from def
// unless s sets them. Non-positive values in def fall back to the package
// defaults.
func ParseDefault(s string, def Config) (Config, error) {
	if def.MaxDepth < 1 {
		def.MaxDepth = DefaultMaxDepth
	}
	if def.FastTimeout <= 0 {
		def.FastTimeout = DefaultFastTimeout
	}
	kind, opts, _ := strings.Cut(strings.TrimSpace(s), ":")
	switch kind {
	case "random":
		if opts != "" {
			return Config{}, fmt.Errorf("agent %q: random takes no options", s)
		}
		return Config{Kind: kind}, nil
	case "maxn":
	default:
		return Config{}, fmt.Errorf("agent %q: unknown kind %q", s, kind)
	}

	c := Config{Kind: kind, MaxDepth: def.MaxDepth, FastTimeout: def.FastTimeout}
	if opts == "" {
		return c, nil
	}
	for _, opt := range strings.Split(opts, ",") {
		key, value, ok := strings.Cut(opt, "=")
		if !ok {
			return Config{}, fmt.Errorf("agent %q: option %q is not key=value", s, opt)
		}
		switch key {
		case "depth":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return Config{}, fmt.Errorf("agent %q: bad depth %q", s, value)
			}
			c.MaxDepth = n
		case "fast":
			d, err := time.ParseDuration(value)
			if err != nil {
				return Config{}, fmt.Errorf("agent %q: bad fast timeout: %w", s, err)
			}
			c.FastTimeout = d
		default:
			return Config{}, fmt.Errorf("agent %q: unknown option %q", s, key)
		}
	}
	return c, nil
}

// ParseAll parses every name and fails on the first bad one.
func ParseAll(names []string) ([]Config, error) {
	out := make([]Config, 0, len(names))
	for _, name := range names {
		c, err := Parse(name)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
