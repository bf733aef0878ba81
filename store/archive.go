package store

import (
	"fmt"
	"log/slog"
	"sync"
)

// Archive buffers rows from concurrently running games and writes a file
// every BatchRows rows. It is safe for concurrent use.
type Archive struct {
	dir       string
	batchRows int
	log       *slog.Logger

	mu    sync.Mutex
	rows  []TurnRow
	files []string
}

func NewArchive(dir string, batchRows int, log *slog.Logger) (*Archive, error) {
	if dir == "" {
		return nil, fmt.Errorf("archive dir is required")
	}
	if batchRows <= 0 {
		batchRows = 10_000
	}
	if log == nil {
		log = slog.Default()
	}
	return &Archive{dir: dir, batchRows: batchRows, log: log}, nil
}

// Record stores the rows of one finished game. Games are never split
// across files.
func (a *Archive) Record(rows []TurnRow) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = append(a.rows, rows...)
	if len(a.rows) < a.batchRows {
		return nil
	}
	return a.flushLocked()
}

// Flush writes any buffered rows.
func (a *Archive) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked()
}

// Files lists the files written so far.
func (a *Archive) Files() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.files...)
}

func (a *Archive) flushLocked() error {
	if len(a.rows) == 0 {
		return nil
	}
	path, err := WriteTurnsAtomic(a.dir, a.rows)
	if err != nil {
		return err
	}
	a.log.Info("wrote turns", "path", path, "rows", len(a.rows))
	a.files = append(a.files, path)
	a.rows = nil
	return nil
}
