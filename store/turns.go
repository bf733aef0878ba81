// Package store archives arena games as parquet, one row per turn.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/snork/game"
)

const schema = "snork_turn_v1"

// TurnRow is the state at the start of a turn together with the moves the
// agents chose from it. Coordinates follow Battlesnake conventions: (0,0)
// is bottom-left.
type TurnRow struct {
	GameID string `parquet:"game_id,dict"`
	Turn   int32  `parquet:"turn"`
	Width  int32  `parquet:"width"`
	Height int32  `parquet:"height"`

	FoodX []int32 `parquet:"food_x"`
	FoodY []int32 `parquet:"food_y"`

	HazardX []int32 `parquet:"hazard_x"`
	HazardY []int32 `parquet:"hazard_y"`

	Snakes []SnakeRow `parquet:"snakes"`

	// Outcome is the outcome after the moves were applied.
	Outcome string `parquet:"outcome,dict"`
	// Winner is the winning seat, or -1.
	Winner int32 `parquet:"winner"`
}

// SnakeRow is one seat. Dead snakes keep their seat with Alive false, no
// body and Move -1.
type SnakeRow struct {
	ID     int32  `parquet:"id"`
	Agent  string `parquet:"agent,dict"`
	Alive  bool   `parquet:"alive"`
	Health int32  `parquet:"health"`

	// Body is head first.
	BodyX []int32 `parquet:"body_x"`
	BodyY []int32 `parquet:"body_y"`

	Move int32 `parquet:"move"`
}

// NewTurnRow snapshots g before moves are applied. agents names every seat
// in id order.
func NewTurnRow(gameID string, g *game.Game, agents []string, moves [game.MaxSnakes]game.Direction) TurnRow {
	row := TurnRow{
		GameID: gameID,
		Turn:   int32(g.Turn),
		Width:  int32(g.Grid.Width),
		Height: int32(g.Grid.Height),
		Winner: -1,
	}
	for _, p := range g.Grid.Points(func(c game.Cell) bool { return c.Kind == game.Food }) {
		row.FoodX = append(row.FoodX, int32(p.X))
		row.FoodY = append(row.FoodY, int32(p.Y))
	}
	for _, p := range g.Grid.Points(func(c game.Cell) bool { return c.Hazard }) {
		row.HazardX = append(row.HazardX, int32(p.X))
		row.HazardY = append(row.HazardY, int32(p.Y))
	}

	for id, name := range agents {
		sr := SnakeRow{ID: int32(id), Agent: name, Move: -1}
		if s, ok := g.Snake(uint8(id)); ok {
			sr.Alive = true
			sr.Health = int32(s.Health)
			sr.Move = int32(moves[id])
			for i := len(s.Body) - 1; i >= 0; i-- {
				sr.BodyX = append(sr.BodyX, int32(s.Body[i].X))
				sr.BodyY = append(sr.BodyY, int32(s.Body[i].Y))
			}
		}
		row.Snakes = append(row.Snakes, sr)
	}
	return row
}

// SetOutcome records the outcome reached after the row's moves.
func (r *TurnRow) SetOutcome(o game.Outcome) {
	r.Outcome = o.String()
	r.Winner = -1
	if o.Kind == game.Won {
		r.Winner = int32(o.Winner)
	}
}

// WriteTurnsAtomic writes rows to a new parquet file in outDir. The file is
// written under outDir/tmp and renamed into place, so readers never see a
// partial file. It returns the final path.
func WriteTurnsAtomic(outDir string, rows []TurnRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("turns_%d.parquet", time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", schema),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return finalPath, nil
}

// ReadTurns loads every row of a file written by WriteTurnsAtomic.
func ReadTurns(path string) ([]TurnRow, error) {
	rows, err := parquet.ReadFile[TurnRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}

// Position rebuilds the board of the row as seen by seat: that seat becomes
// snake 0 and the other living seats follow in seat order.
func (r *TurnRow) Position(seat int) (*game.Game, error) {
	if seat < 0 || seat >= len(r.Snakes) || !r.Snakes[seat].Alive {
		return nil, fmt.Errorf("%w: seat %d is not alive on turn %d", game.ErrInvalidGame, seat, r.Turn)
	}
	order := []int{seat}
	for i, s := range r.Snakes {
		if i != seat && s.Alive {
			order = append(order, i)
		}
	}

	snakes := make([]game.SnakeData, 0, len(order))
	for _, i := range order {
		s := r.Snakes[i]
		snakes = append(snakes, game.SnakeData{Health: int(s.Health), Body: zip(s.BodyX, s.BodyY)})
	}
	return game.New(int(r.Turn), int(r.Width), int(r.Height), snakes, zip(r.FoodX, r.FoodY), zip(r.HazardX, r.HazardY))
}

func zip(xs, ys []int32) []game.Point {
	n := min(len(xs), len(ys))
	out := make([]game.Point, n)
	for i := range n {
		out[i] = game.Point{X: int(xs[i]), Y: int(ys[i])}
	}
	return out
}
