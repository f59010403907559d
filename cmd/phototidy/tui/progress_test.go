package tui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/phototidy/pkg/tidy/progress"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestModel_PhaseLifecycle(t *testing.T) {
	m := NewModel("Executing", make(chan progress.Event), nil)

	m, _ = update(t, m, EventMsg{Type: progress.PhaseStart, Phase: "execute", ItemsTotal: 4})
	assert.Equal(t, "execute", m.phase)
	assert.Equal(t, 4, m.itemsTotal)

	m, _ = update(t, m, EventMsg{Type: progress.FileProgress, Phase: "execute", Path: "/p/a.jpg", Op: "MOVE",
		Items: 1, ItemsTotal: 4, RunDone: 50, RunTotal: 200})
	assert.Equal(t, "/p/a.jpg", m.path)
	assert.InDelta(t, 0.25, m.fraction(), 1e-9)
	assert.Contains(t, m.View(), "1/4 files")

	m, _ = update(t, m, EventMsg{Type: progress.PhaseEnd, Phase: "execute", Status: "ok", Elapsed: time.Second})
	require.Len(t, m.finished, 1)
	assert.Empty(t, m.phase)
	assert.Contains(t, m.View(), "execute")
}

func TestModel_FractionByItems(t *testing.T) {
	m := NewModel("Hashing", nil, nil)
	m.apply(progress.Event{Type: progress.FileDone, Items: 3, ItemsTotal: 6})
	assert.InDelta(t, 0.5, m.fraction(), 1e-9)

	m.apply(progress.Event{Type: progress.FileDone, Items: 2, ItemsTotal: 6})
	assert.Equal(t, 3, m.items, "counters never go backwards")
}

func TestModel_SlowWarningsCapped(t *testing.T) {
	m := NewModel("Executing", nil, nil)
	for range maxWarnings + 2 {
		m.apply(progress.Event{Type: progress.SlowNetworkWarning, Path: "/nas/x.mov", Evidence: "0.2 MB/s"})
	}
	assert.Len(t, m.warnings, maxWarnings)
	assert.Contains(t, m.View(), "slow transfer /nas/x.mov")
}

func TestModel_CtrlCCancelsOnce(t *testing.T) {
	calls := 0
	m := NewModel("Executing", nil, func() { calls++ })

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Nil(t, cmd, "the model waits for the work to stop")
	assert.True(t, m.stopping)
	assert.Contains(t, m.View(), "stopping after current file")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Equal(t, 1, calls)
	assert.False(t, m.Done())
}

func TestModel_WorkDoneQuits(t *testing.T) {
	m := NewModel("Rolling back", nil, nil)
	boom := errors.New("boom")

	m, cmd := update(t, m, WorkDoneMsg{Err: boom})
	require.NotNil(t, cmd)
	assert.True(t, m.Done())
	assert.ErrorIs(t, m.Err(), boom)
	assert.Contains(t, m.View(), "Error: boom")
}

func TestModel_ListenReportsClose(t *testing.T) {
	ch := make(chan progress.Event, 1)
	m := NewModel("Executing", ch, nil)

	ch <- progress.Event{Type: progress.Heartbeat, Phase: "execute"}
	msg := m.listen()()
	assert.Equal(t, EventMsg{Type: progress.Heartbeat, Phase: "execute"}, msg)

	close(ch)
	assert.Equal(t, eventsClosedMsg{}, m.listen()())
}

func TestTruncatePath(t *testing.T) {
	assert.Equal(t, "/a/b", truncatePath("/a/b", 10))
	assert.Equal(t, ".../c.jpg", truncatePath("/long/path/c.jpg", 9))
	assert.Equal(t, "/lo", truncatePath("/long", 3))
}
