package tui

import (
	"fmt"
	"strings"
	"time"

	bprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/phototidy/pkg/tidy/progress"
	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

// maxWarnings is the number of slow-transfer warnings kept on screen.
const maxWarnings = 3

// EventMsg carries one progress event into the model.
type EventMsg progress.Event

// eventsClosedMsg is sent once the event channel is drained.
type eventsClosedMsg struct{}

// WorkDoneMsg is sent when the background work returns.
type WorkDoneMsg struct {
	Err error
}

// phaseLine is a finished phase.
type phaseLine struct {
	name    string
	status  string
	elapsed time.Duration
}

// Model shows the active phase of an operation, the file being processed
// and the phases finished so far.
type Model struct {
	title   string
	events  <-chan progress.Event
	cancel  func()
	spinner spinner.Model
	bar     bprogress.Model
	start   time.Time

	phase      string
	path       string
	op         string
	items      int
	itemsTotal int
	runDone    int64
	runTotal   int64
	speedMBps  float64

	finished []phaseLine
	warnings []string

	stopping bool
	done     bool
	err      error
	width    int
}

// NewModel returns a model reading from events. cancel is called once when
// the user asks to stop.
func NewModel(title string, events <-chan progress.Event, cancel func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(brandColor)

	return Model{
		title:   title,
		events:  events,
		cancel:  cancel,
		spinner: s,
		bar:     bprogress.New(bprogress.WithDefaultGradient(), bprogress.WithWidth(40)),
		start:   time.Now(),
		width:   80,
	}
}

// Init starts the spinner and the event listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

// listen waits for the next progress event.
func (m Model) listen() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return EventMsg(ev)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-20))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.done {
				return m, tea.Quit
			}
			if !m.stopping {
				m.stopping = true
				if m.cancel != nil {
					m.cancel()
				}
			}
		}
		return m, nil

	case EventMsg:
		m.apply(progress.Event(msg))
		return m, m.listen()

	case eventsClosedMsg:
		return m, nil

	case WorkDoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) apply(ev progress.Event) {
	switch ev.Type {
	case progress.PhaseStart:
		m.phase = ev.Phase
		m.path, m.op = "", ""
		m.items, m.itemsTotal = 0, ev.ItemsTotal
		m.runDone, m.runTotal = 0, 0
		m.speedMBps = 0

	case progress.PhaseEnd:
		m.finished = append(m.finished, phaseLine{name: ev.Phase, status: ev.Status, elapsed: ev.Elapsed})
		if ev.Phase == m.phase {
			m.phase, m.path = "", ""
		}

	case progress.SlowNetworkWarning:
		m.warnings = append(m.warnings, fmt.Sprintf("slow transfer %s (%s)", ev.Path, ev.Evidence))
		if len(m.warnings) > maxWarnings {
			m.warnings = m.warnings[len(m.warnings)-maxWarnings:]
		}

	default:
		if ev.Path != "" {
			m.path = ev.Path
		}
		if ev.Op != "" {
			m.op = ev.Op
		}
		m.items = max(m.items, ev.Items)
		m.itemsTotal = max(m.itemsTotal, ev.ItemsTotal)
		m.runDone, m.runTotal = ev.RunDone, ev.RunTotal
		if ev.SpeedMBps > 0 {
			m.speedMBps = ev.SpeedMBps
		}
	}
}

// fraction is the completed share of the active phase, by bytes when known.
func (m Model) fraction() float64 {
	switch {
	case m.runTotal > 0:
		return min(1, float64(m.runDone)/float64(m.runTotal))
	case m.itemsTotal > 0:
		return min(1, float64(m.items)/float64(m.itemsTotal))
	}
	return 0
}

// View renders the model.
func (m Model) View() string {
	width := max(40, m.width-4)
	var b strings.Builder

	hint := "[ctrl+c to stop]"
	if m.stopping && !m.done {
		hint = "stopping after current file..."
	}
	title := titleStyle.Render(m.title)
	spacing := max(1, width-lipgloss.Width(title)-lipgloss.Width(hint))
	b.WriteString(title + strings.Repeat(" ", spacing) + mutedTextStyle.Render(hint) + "\n")
	b.WriteString(rule(width) + "\n")

	for _, p := range m.finished {
		status := phaseStatusStyle(p.status).Render(p.status)
		fmt.Fprintf(&b, "  %-10s %s  %s\n", p.name, status, mutedTextStyle.Render(p.elapsed.Round(time.Millisecond).String()))
	}

	switch {
	case m.done && m.err != nil:
		b.WriteString(errorTextStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n")
	case m.done:
		b.WriteString(phaseStatusStyle("ok").Render("  Done") + "\n")
	case m.phase != "":
		fmt.Fprintf(&b, "\n  %s %s", m.spinner.View(), phaseStyle.Render(m.phase))
		if m.op != "" {
			b.WriteString(mutedTextStyle.Render(" " + m.op))
		}
		b.WriteString("\n  " + m.bar.ViewAs(m.fraction()) + "\n")
		b.WriteString("  " + m.counters() + "\n")
		if m.path != "" {
			b.WriteString("  " + mutedTextStyle.Render(truncatePath(m.path, width-4)) + "\n")
		}
	}

	for _, w := range m.warnings {
		b.WriteString(warnTextStyle.Render("  "+w) + "\n")
	}

	return frameStyle.Width(m.width - 2).Render(b.String())
}

func (m Model) counters() string {
	var parts []string
	if m.itemsTotal > 0 {
		parts = append(parts, fmt.Sprintf("%s/%s files", humanize.Comma(int64(m.items)), humanize.Comma(int64(m.itemsTotal))))
	} else if m.items > 0 {
		parts = append(parts, humanize.Comma(int64(m.items))+" files")
	}
	if m.runTotal > 0 {
		parts = append(parts, types.FormatSize(m.runDone)+" / "+types.FormatSize(m.runTotal))
	}
	if m.speedMBps > 0 {
		parts = append(parts, fmt.Sprintf("%.1f MB/s", m.speedMBps))
	}
	parts = append(parts, time.Since(m.start).Round(time.Second).String())
	return strings.Join(parts, "  ")
}

// Done reports whether the work finished.
func (m Model) Done() bool {
	return m.done
}

// Err returns the error the work finished with.
func (m Model) Err() error {
	return m.err
}

// Run shows progress for work until it returns. em is closed once work
// returns. cancel is invoked when the user presses ctrl+c.
func Run(title string, em *progress.Emitter, cancel func(), work func() error) error {
	p := tea.NewProgram(NewModel(title, em.Events(), cancel))

	errc := make(chan error, 1)
	go func() {
		err := work()
		em.Close()
		errc <- err
		p.Send(WorkDoneMsg{Err: err})
	}()

	if _, err := p.Run(); err != nil {
		// Keep the emitter drained so work can finish.
		for range em.Events() {
		}
		if werr := <-errc; werr != nil {
			return werr
		}
		return fmt.Errorf("progress display failed: %w", err)
	}
	return <-errc
}
