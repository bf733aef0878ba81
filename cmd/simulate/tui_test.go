package main

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/snork/arena"
	"github.com/brensch/snork/game"
)

func testModel(events chan arena.Event, cancel func()) model {
	return newModel(arena.Tally{Agents: []string{"random", "maxn:depth=7,fast=150ms"}, Wins: []int{0, 0}}, 4, events, cancel)
}

func event(index, winner int) arena.Event {
	tally := arena.Tally{Agents: []string{"random", "maxn:depth=7,fast=150ms"}, Wins: []int{0, 0}, Games: index, Turns: 10 * index}
	out := game.Outcome{Kind: game.Draw}
	if winner >= 0 {
		tally.Wins[winner] = index
		out = game.Outcome{Kind: game.Won, Winner: 1}
	}
	return arena.Event{
		GameID:  "0123456789abcdef",
		Index:   index,
		Total:   4,
		Outcome: out,
		Winner:  winner,
		Turns:   10,
		Tally:   tally,
	}
}

func TestModel_Event(t *testing.T) {
	events := make(chan arena.Event, 1)
	m := testModel(events, nil)

	next, cmd := m.Update(event(2, 1))
	require.NotNil(t, cmd)
	m = next.(model)
	assert.Equal(t, 2, m.tally.Games)
	assert.Equal(t, []int{0, 2}, m.tally.Wins)
	require.Len(t, m.recent, 1)
	assert.Equal(t, "#2 01234567: won by maxn:depth=7,fast=150ms in 10 turns", m.recent[0])

	// A late event from an earlier game does not roll the tally back.
	next, _ = m.Update(event(1, -1))
	m = next.(model)
	assert.Equal(t, 2, m.tally.Games)
	require.Len(t, m.recent, 2)
	assert.Equal(t, "#1 01234567: draw in 10 turns", m.recent[0])

	// The returned command reads the next event.
	events <- event(3, 0)
	msg := cmd()
	assert.Equal(t, 3, msg.(arena.Event).Index)
}

func TestModel_RecentIsCapped(t *testing.T) {
	m := testModel(make(chan arena.Event), nil)
	for i := 1; i <= recentGames+5; i++ {
		next, _ := m.Update(event(i, 0))
		m = next.(model)
	}
	assert.Len(t, m.recent, recentGames)
	assert.Contains(t, m.recent[0], "#15 ")
}

func TestModel_QuitCancels(t *testing.T) {
	cancelled := false
	m := testModel(make(chan arena.Event), func() { cancelled = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, cancelled)
}

func TestModel_Done(t *testing.T) {
	m := testModel(make(chan arena.Event), nil)
	final := event(4, 0).Tally

	next, cmd := m.Update(doneMsg{tally: final})
	m = next.(model)
	assert.True(t, m.done)
	assert.Equal(t, final, m.tally)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	// Ticks stop once the run is over.
	_, cmd = m.Update(tickMsg(time.Now()))
	assert.Nil(t, cmd)
}

func TestModel_View(t *testing.T) {
	m := testModel(make(chan arena.Event), nil)
	next, _ := m.Update(event(3, 1))
	m = next.(model)
	m.now = m.start.Add(3 * time.Second)

	view := m.View()
	assert.Contains(t, view, "Games:      3/4")
	assert.Contains(t, view, "Games/Sec:  1.00")
	assert.Contains(t, view, "maxn:depth=7,fast=150ms")
	assert.Contains(t, view, "Press q to quit.")
	assert.NotContains(t, view, "unfinished")
}
