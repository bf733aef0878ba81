package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/snork/arena"
)

const recentGames = 10

type tickMsg time.Time

// doneMsg is sent once arena.Run has returned.
type doneMsg struct {
	tally arena.Tally
	err   error
}

type model struct {
	start  time.Time
	now    time.Time
	total  int
	tally  arena.Tally
	recent []string
	events <-chan arena.Event
	cancel context.CancelFunc
	done   bool
	err    error
}

func newModel(tally arena.Tally, total int, events <-chan arena.Event, cancel context.CancelFunc) model {
	now := time.Now()
	return model{
		start:  now,
		now:    now,
		total:  total,
		tally:  tally,
		events: events,
		cancel: cancel,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForEvent(events <-chan arena.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return ev
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case tickMsg:
		m.now = time.Time(msg)
		if m.done {
			return m, nil
		}
		return m, tickCmd()
	case arena.Event:
		if msg.Index >= m.tally.Games {
			m.tally = msg.Tally
		}
		m.recent = append([]string{describe(msg)}, m.recent...)
		if len(m.recent) > recentGames {
			m.recent = m.recent[:recentGames]
		}
		return m, waitForEvent(m.events)
	case doneMsg:
		m.done = true
		m.err = msg.err
		m.tally = msg.tally
		return m, tea.Quit
	}
	return m, nil
}

func describe(ev arena.Event) string {
	result := ev.Outcome.String()
	if ev.Winner >= 0 && ev.Winner < len(ev.Tally.Agents) {
		result = "won by " + ev.Tally.Agents[ev.Winner]
	}
	return fmt.Sprintf("#%d %s: %s in %d turns", ev.Index, ev.GameID[:min(8, len(ev.GameID))], result, ev.Turns)
}

func (m model) View() string {
	elapsed := m.now.Sub(m.start)
	var rate float64
	if elapsed >= time.Second {
		rate = float64(m.tally.Games) / elapsed.Seconds()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Games:      %d/%d\n", m.tally.Games, m.total)
	fmt.Fprintf(&b, "Turns:      %d\n", m.tally.Turns)
	fmt.Fprintf(&b, "Duration:   %s\n", elapsed.Round(time.Second))
	fmt.Fprintf(&b, "Games/Sec:  %.2f\n\n", rate)

	for i, name := range m.tally.Agents {
		fmt.Fprintf(&b, "%-32s %d\n", name, m.tally.Wins[i])
	}
	fmt.Fprintf(&b, "%-32s %d\n", "draws", m.tally.Draws)
	if m.tally.Unfinished > 0 {
		fmt.Fprintf(&b, "%-32s %d\n", "unfinished", m.tally.Unfinished)
	}

	b.WriteString("\nRecent Games:\n")
	for _, g := range m.recent {
		b.WriteString(g + "\n")
	}

	if m.err != nil {
		fmt.Fprintf(&b, "\nError: %v\n", m.err)
	}
	b.WriteString("\nPress q to quit.\n")
	return b.String()
}
