// Package viewer serves archived arena games as JSON and analyses recorded
// positions with the search.
package viewer

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brensch/snork/store"
)

var ErrGameNotFound = errors.New("game not found")

// GameSummary describes one archived game.
type GameSummary struct {
	GameID    string   `json:"game_id"`
	File      string   `json:"file"`
	MinTurn   int32    `json:"min_turn"`
	MaxTurn   int32    `json:"max_turn"`
	TurnCount int      `json:"turn_count"`
	Width     int32    `json:"width"`
	Height    int32    `json:"height"`
	Agents    []string `json:"agents"`
	Result    string   `json:"result"`
}

type archivedFile struct {
	modTime time.Time
	rows    []store.TurnRow
}

// Index caches the games found in parquet files under Roots. It rescans the
// roots once the cache is older than Refresh and only rereads changed files.
type Index struct {
	Roots   []string
	Refresh time.Duration
	Log     *slog.Logger

	mu       sync.RWMutex
	loadedAt time.Time
	files    map[string]archivedFile
	games    []GameSummary
	turns    map[string][]store.TurnRow
}

func NewIndex(roots []string, refresh time.Duration, log *slog.Logger) *Index {
	if log == nil {
		log = slog.Default()
	}
	return &Index{Roots: roots, Refresh: refresh, Log: log}
}

// Games returns every indexed game ordered by id.
func (x *Index) Games() ([]GameSummary, error) {
	if err := x.load(false); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.games, nil
}

// Turns returns the rows of one game in turn order.
func (x *Index) Turns(gameID string) ([]store.TurnRow, error) {
	if err := x.load(false); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	rows, ok := x.turns[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return rows, nil
}

// Reload rescans the roots regardless of the cache age.
func (x *Index) Reload() error {
	return x.load(true)
}

func (x *Index) load(force bool) error {
	x.mu.RLock()
	fresh := x.turns != nil && time.Since(x.loadedAt) < x.Refresh
	x.mu.RUnlock()
	if fresh && !force {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if !force && x.turns != nil && time.Since(x.loadedAt) < x.Refresh {
		return nil
	}
	start := time.Now()

	paths, err := findParquetFiles(x.Roots)
	if err != nil {
		return err
	}

	files := make(map[string]archivedFile, len(paths))
	read := 0
	for path, mod := range paths {
		if f, ok := x.files[path]; ok && f.modTime.Equal(mod) {
			files[path] = f
			continue
		}
		rows, err := store.ReadTurns(path)
		if err != nil {
			x.Log.Warn("skip unreadable archive", "file", path, "err", err)
			continue
		}
		files[path] = archivedFile{modTime: mod, rows: rows}
		read++
	}

	turns := map[string][]store.TurnRow{}
	fileOf := map[string]string{}
	for path, f := range files {
		for _, row := range f.rows {
			turns[row.GameID] = append(turns[row.GameID], row)
			fileOf[row.GameID] = x.relative(path)
		}
	}

	games := make([]GameSummary, 0, len(turns))
	for id, rows := range turns {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Turn < rows[j].Turn })
		games = append(games, summarise(id, fileOf[id], rows))
	}
	sort.Slice(games, func(i, j int) bool { return games[i].GameID < games[j].GameID })

	x.files = files
	x.turns = turns
	x.games = games
	x.loadedAt = time.Now()
	x.Log.Debug("index refreshed", "files", len(files), "read", read, "games", len(games), "elapsed", time.Since(start))
	return nil
}

func summarise(id, file string, rows []store.TurnRow) GameSummary {
	first, last := rows[0], rows[len(rows)-1]
	s := GameSummary{
		GameID:    id,
		File:      file,
		MinTurn:   first.Turn,
		MaxTurn:   last.Turn,
		TurnCount: len(rows),
		Width:     first.Width,
		Height:    first.Height,
		Result:    last.Outcome,
	}
	for _, snake := range first.Snakes {
		s.Agents = append(s.Agents, snake.Agent)
	}
	if w := int(last.Winner); w >= 0 && w < len(s.Agents) {
		s.Result = fmt.Sprintf("won by %s (seat %d)", s.Agents[w], w)
	}
	return s
}

func (x *Index) relative(path string) string {
	for _, root := range x.Roots {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return path
}

// findParquetFiles maps every parquet file under roots to its modification
// time. Missing roots and in-progress tmp directories are skipped.
func findParquetFiles(roots []string) (map[string]time.Time, error) {
	out := map[string]time.Time{}
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && path == root {
					return fs.SkipDir
				}
				return err
			}
			if d.IsDir() {
				if d.Name() == "tmp" && path != root {
					return fs.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(d.Name(), ".parquet") {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			out[path] = info.ModTime()
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", root, err)
		}
	}
	return out, nil
}

// page sorts a copy of games and returns the window [offset, offset+limit).
func page(games []GameSummary, limit, offset int, sortKey, sortDir string) []GameSummary {
	key, dir := normalizeSort(sortKey, sortDir)

	sorted := append([]GameSummary(nil), games...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if dir == "desc" {
			a, b = b, a
		}
		switch key {
		case "turn_count":
			return a.TurnCount < b.TurnCount
		case "file":
			return a.File < b.File
		default:
			return a.GameID < b.GameID
		}
	})

	if offset >= len(sorted) {
		return []GameSummary{}
	}
	end := min(offset+limit, len(sorted))
	return sorted[offset:end]
}

func normalizeSort(sortKey, sortDir string) (string, string) {
	dir := strings.ToLower(strings.TrimSpace(sortDir))
	if dir != "asc" && dir != "desc" {
		dir = "asc"
	}
	switch strings.ToLower(strings.TrimSpace(sortKey)) {
	case "turns", "turn_count":
		return "turn_count", dir
	case "file", "filename":
		return "file", dir
	case "id", "game", "game_id":
		return "game_id", dir
	default:
		return "game_id", "asc"
	}
}
