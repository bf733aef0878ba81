// Package replay downloads finished games from the Battlesnake engine and
// measures how often an agent picks the move that was actually played.
package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNoFrames is returned for a game stream that carried no frames.
var ErrNoFrames = errors.New("no frames")

const DefaultEngineURL = "wss://engine.battlesnake.com/games/%s/events"

// Event is one message of the engine's game event stream.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// GameInfo is the payload of the "game_info" event.
type GameInfo struct {
	Game    GameDetails `json:"game"`
	Ruleset Ruleset     `json:"ruleset"`
}

type GameDetails struct {
	ID      string `json:"id"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Timeout int    `json:"timeout"`
}

type Ruleset struct {
	Name     string          `json:"name"`
	Version  string          `json:"version"`
	Settings json.RawMessage `json:"settings"`
}

// Frame is the payload of a "frame" event.
type Frame struct {
	Turn    int     `json:"turn"`
	Snakes  []Snake `json:"snakes"`
	Food    []Coord `json:"food"`
	Hazards []Coord `json:"hazards"`
	Board   Board   `json:"board,omitempty"`
}

type Snake struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Health  int     `json:"health"`
	Body    []Coord `json:"body"`
	Latency string  `json:"latency,omitempty"`
	Author  string  `json:"author,omitempty"`
	Death   *Death  `json:"death,omitempty"`
}

// Alive reports whether the snake was still playing in its frame.
func (s *Snake) Alive() bool {
	return s.Death == nil && len(s.Body) > 0
}

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Board struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Death struct {
	Cause string `json:"cause"`
	Turn  int    `json:"turn"`
}

// Game is a downloaded game. Frames are in turn order.
type Game struct {
	Info   GameInfo
	Frames []Frame
}

type Downloader struct {
	// EngineURL is a format string taking the game id.
	EngineURL      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Log            *slog.Logger
}

func NewDownloader(log *slog.Logger) *Downloader {
	if log == nil {
		log = slog.Default()
	}
	return &Downloader{
		EngineURL:      DefaultEngineURL,
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
		Log:            log,
	}
}

// Download reads the event stream of a game until the engine closes it or
// sends "game_end". A stream that breaks after some frames is kept.
func (d *Downloader) Download(ctx context.Context, gameID string) (*Game, error) {
	url := fmt.Sprintf(d.EngineURL, gameID)
	log := d.Log.With("game", gameID)

	dialer := websocket.Dialer{HandshakeTimeout: d.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	out := &Game{}
read:
	for {
		if d.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(d.ReadTimeout))
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if len(out.Frames) > 0 {
				log.Warn("stream ended early", "frames", len(out.Frames), "err", err)
				break
			}
			return nil, fmt.Errorf("read %s: %w", gameID, err)
		}

		var ev Event
		if err := json.Unmarshal(message, &ev); err != nil {
			log.Warn("failed to parse event", "err", err)
			continue
		}

		switch ev.Type {
		case "game_info":
			if err := json.Unmarshal(ev.Data, &out.Info); err != nil {
				log.Warn("failed to parse game_info", "err", err)
			}
		case "frame":
			var f Frame
			if err := json.Unmarshal(ev.Data, &f); err != nil {
				log.Warn("failed to parse frame", "err", err)
				continue
			}
			out.Frames = append(out.Frames, f)
		case "game_end":
			break read
		}
	}

	if len(out.Frames) == 0 {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrNoFrames)
	}
	log.Debug("downloaded", "frames", len(out.Frames), "ruleset", out.Info.Ruleset.Name)
	return out, nil
}

// Winner returns the name of the only snake alive in the last frame, or
// "draw".
func (g *Game) Winner() string {
	last := g.Frames[len(g.Frames)-1]
	var alive []Snake
	for _, s := range last.Snakes {
		if s.Alive() {
			alive = append(alive, s)
		}
	}
	if len(alive) == 1 {
		return alive[0].Name
	}
	return "draw"
}
